package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dataask/dataask/core/application/execution"
	"github.com/dataask/dataask/core/infrastructure/transport/http/dto"
	"github.com/dataask/dataask/core/infrastructure/transport/http/middleware"
	sharedcontext "github.com/dataask/dataask/core/shared/context"
)

// QueryExecutor runs ad-hoc queries.
type QueryExecutor interface {
	Execute(ctx context.Context, req execution.Request) (*execution.Result, error)
}

// QueryHandler serves ad-hoc execution.
type QueryHandler struct {
	*BaseHandler
	executor QueryExecutor
}

func NewQueryHandler(executor QueryExecutor) *QueryHandler {
	return &QueryHandler{BaseHandler: NewBaseHandler("handler:query"), executor: executor}
}

// Execute handles POST /v1/workspaces/{ws}/connections/{conn}/query
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var body dto.ExecuteQueryRequest
	if err := middleware.DecodeAndValidate(r, &body); err != nil {
		h.WriteError(w, err)
		return
	}

	ctx := r.Context()
	req := body.ToRequest(chi.URLParam(r, "ws"), chi.URLParam(r, "conn"), sharedcontext.GetUserID(ctx))
	res, err := h.executor.Execute(ctx, req)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.logger.Debugf("Query %s returned in %.1fms", res.HistoryID, res.ExecutionTimeMs)
	h.WriteSuccess(w, res)
}
