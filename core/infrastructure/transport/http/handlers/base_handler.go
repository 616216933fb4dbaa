package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dataask/dataask/core/infrastructure/transport/http/dto"
	"github.com/dataask/dataask/core/infrastructure/transport/http/middleware"
	"github.com/dataask/dataask/core/logger"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	logger logger.Logger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(tag string) *BaseHandler {
	return &BaseHandler{
		logger: logger.New(tag),
	}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

// WriteError maps err to its status and writes the error envelope.
// Decode and validation failures become 400 with field details.
func (h *BaseHandler) WriteError(w http.ResponseWriter, err error) {
	var verr *middleware.ValidationError
	if errors.As(err, &verr) {
		h.WriteValidationError(w, verr)
		return
	}
	if errors.Is(err, middleware.ErrInvalidJSON) {
		h.WriteJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Code:  string(apperrors.ErrCodeValidationError),
			Error: err.Error(),
		})
		return
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewAppError(apperrors.ErrCodeInternalError, "internal error", err)
	}
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Errorf("Request failed: %v", err)
	}

	h.WriteJSON(w, appErr.Status, dto.ErrorResponse{
		Code:  string(appErr.Code),
		Error: appErr.Message,
	})
}

// WriteValidationError writes a validation error response
func (h *BaseHandler) WriteValidationError(w http.ResponseWriter, verr *middleware.ValidationError) {
	details := make([]dto.ErrorDetail, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		details = append(details, dto.ErrorDetail{
			Field:   f.Field,
			Tag:     f.Tag,
			Message: "Validation failed",
		})
	}

	h.WriteJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Code:    string(apperrors.ErrCodeValidationError),
		Error:   "Validation failed",
		Details: details,
	})
}

// WriteSuccess wraps data in the success envelope.
func (h *BaseHandler) WriteSuccess(w http.ResponseWriter, data any) {
	h.WriteJSON(w, http.StatusOK, dto.DataResponse{Success: true, Data: data})
}

// WriteCreated is WriteSuccess with 201.
func (h *BaseHandler) WriteCreated(w http.ResponseWriter, data any) {
	h.WriteJSON(w, http.StatusCreated, dto.DataResponse{Success: true, Data: data})
}

// queryInt reads a non-negative integer query parameter. Missing means
// fallback.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.Validation("%s must be a non-negative integer", name)
	}
	return n, nil
}
