package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	sharedcontext "github.com/dataask/dataask/core/shared/context"
)

// UserIDHeader carries the caller identity set by the fronting proxy.
const UserIDHeader = "X-User-ID"

// Identity copies the chi request id and the caller's user id into the
// request context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := chimiddleware.GetReqID(ctx); id != "" {
			ctx = sharedcontext.WithRequestID(ctx, id)
		}
		if user := r.Header.Get(UserIDHeader); user != "" {
			ctx = sharedcontext.WithUserID(ctx, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
