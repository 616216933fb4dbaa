package context

import (
	"context"
	"crypto/rand"
	"encoding/base64"
)

type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// UserIDKey is the context key for the calling user
	UserIDKey contextKey = "user_id"
	// ScheduledQueryIDKey marks work done on behalf of a scheduled run
	ScheduledQueryIDKey contextKey = "scheduled_query_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUserID adds the calling user's ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID retrieves the calling user's ID from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// WithScheduledQueryID tags the context with the scheduled query being run
func WithScheduledQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ScheduledQueryIDKey, id)
}

// GetScheduledQueryID retrieves the scheduled query ID from context
func GetScheduledQueryID(ctx context.Context) string {
	if id, ok := ctx.Value(ScheduledQueryIDKey).(string); ok {
		return id
	}
	return ""
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
