package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
)

type HistoryHandler struct {
	*BaseHandler
	repo interfaces.HistoryRepository
}

func NewHistoryHandler(repo interfaces.HistoryRepository) *HistoryHandler {
	return &HistoryHandler{BaseHandler: NewBaseHandler("handler:history"), repo: repo}
}

// List handles GET .../query-history?limit=&offset=&connection_id=
// The store applies the default page size and its cap.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	entries, err := h.repo.List(r.Context(), domain.HistoryFilter{
		WorkspaceID:  chi.URLParam(r, "ws"),
		ConnectionID: r.URL.Query().Get("connection_id"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, entries)
}

func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.repo.Get(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, entry)
}

func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "ws"), chi.URLParam(r, "id")); err != nil {
		h.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
