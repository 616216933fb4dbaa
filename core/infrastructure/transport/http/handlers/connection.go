package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dataask/dataask/core/application/connection"
	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/infrastructure/transport/http/dto"
	"github.com/dataask/dataask/core/infrastructure/transport/http/middleware"
)

// ConnectionService is the connection use-case surface.
type ConnectionService interface {
	Create(ctx context.Context, req connection.CreateRequest) (*domain.Connection, error)
	List(ctx context.Context, workspaceID string) ([]*domain.Connection, error)
	Get(ctx context.Context, workspaceID, id string) (*domain.Connection, error)
	Test(ctx context.Context, workspaceID, id string) (*domain.ConnectionTest, error)
	Tables(ctx context.Context, workspaceID, id string) ([]domain.Table, error)
	Constraints(ctx context.Context, workspaceID, id string) ([]domain.Constraint, error)
	Preview(ctx context.Context, workspaceID, id, table string, limit int) (any, error)
}

type ConnectionHandler struct {
	*BaseHandler
	svc ConnectionService
}

func NewConnectionHandler(svc ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{BaseHandler: NewBaseHandler("handler:connection"), svc: svc}
}

func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	conns, err := h.svc.List(r.Context(), chi.URLParam(r, "ws"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, conns)
}

func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body dto.CreateConnectionRequest
	if err := middleware.DecodeAndValidate(r, &body); err != nil {
		h.WriteError(w, err)
		return
	}
	c, err := h.svc.Create(r.Context(), body.ToRequest(chi.URLParam(r, "ws")))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteCreated(w, c)
}

func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "conn"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, c)
}

// Test answers 200 for both outcomes; the result carries the status.
func (h *ConnectionHandler) Test(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Test(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "conn"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, res)
}

func (h *ConnectionHandler) Tables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.svc.Tables(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "conn"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, tables)
}

func (h *ConnectionHandler) Constraints(w http.ResponseWriter, r *http.Request) {
	cons, err := h.svc.Constraints(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "conn"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, cons)
}

// Preview handles GET .../tables/{table}/preview?limit=
func (h *ConnectionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	data, err := h.svc.Preview(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "conn"), chi.URLParam(r, "table"), limit)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, data)
}
