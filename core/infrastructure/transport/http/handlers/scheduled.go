package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dataask/dataask/core/application/scheduler"
	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/infrastructure/transport/http/dto"
	"github.com/dataask/dataask/core/infrastructure/transport/http/middleware"
	sharedcontext "github.com/dataask/dataask/core/shared/context"
)

// ScheduledQueryService is the scheduled query use-case surface.
type ScheduledQueryService interface {
	List(ctx context.Context, workspaceID string) ([]*domain.ScheduledQuery, error)
	Get(ctx context.Context, workspaceID, id string) (*domain.ScheduledQuery, error)
	Create(ctx context.Context, q *domain.ScheduledQuery) (*domain.ScheduledQuery, error)
	Update(ctx context.Context, workspaceID, id string, patch scheduler.Patch) (*domain.ScheduledQuery, error)
	Toggle(ctx context.Context, workspaceID, id string) (*domain.ScheduledQuery, error)
	Delete(ctx context.Context, workspaceID, id string) error
	RunNow(ctx context.Context, workspaceID, id string) (*scheduler.Outcome, error)
}

type ScheduledQueryHandler struct {
	*BaseHandler
	svc ScheduledQueryService
}

func NewScheduledQueryHandler(svc ScheduledQueryService) *ScheduledQueryHandler {
	return &ScheduledQueryHandler{BaseHandler: NewBaseHandler("handler:scheduled"), svc: svc}
}

func (h *ScheduledQueryHandler) List(w http.ResponseWriter, r *http.Request) {
	qs, err := h.svc.List(r.Context(), chi.URLParam(r, "ws"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, qs)
}

func (h *ScheduledQueryHandler) Get(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Get(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, q)
}

func (h *ScheduledQueryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body dto.ScheduledQueryRequest
	if err := middleware.DecodeAndValidate(r, &body); err != nil {
		h.WriteError(w, err)
		return
	}
	ctx := r.Context()
	q, err := h.svc.Create(ctx, body.ToDomain(chi.URLParam(r, "ws"), sharedcontext.GetUserID(ctx)))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteCreated(w, q)
}

// Update serves both PUT and PATCH; omitted fields are kept.
func (h *ScheduledQueryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body dto.ScheduledQueryRequest
	if err := middleware.DecodeAndValidate(r, &body); err != nil {
		h.WriteError(w, err)
		return
	}
	q, err := h.svc.Update(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "id"), body.ToPatch())
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, q)
}

func (h *ScheduledQueryHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Toggle(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, q)
}

func (h *ScheduledQueryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "id")); err != nil {
		h.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Run triggers the query now and waits for its outcome. A failed run is
// still 200; the outcome carries the error.
func (h *ScheduledQueryHandler) Run(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.RunNow(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, out)
}
