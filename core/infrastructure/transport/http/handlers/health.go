package handlers

import (
	"net/http"

	"github.com/dataask/dataask/core/infrastructure/transport/http/dto"
)

var health = NewBaseHandler("handler:health")

// Heartbeat handles GET /heartbeat
func Heartbeat(w http.ResponseWriter, _ *http.Request) {
	health.WriteJSON(w, http.StatusOK, dto.HealthResponse{Success: true})
}
