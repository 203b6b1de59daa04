// internal/handlers/health.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"intesters-backend/internal/models"
	"intesters-backend/pkg/utils"
)

// Pinger is satisfied by *database.MongoDB.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		utils.SendJSONResponse(w, http.StatusServiceUnavailable, models.HealthResponse{
			Status:  "unhealthy",
			Message: "MongoDB is unreachable",
		})
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, models.HealthResponse{
		Status:  "healthy",
		Message: "Server is running and connected to MongoDB",
	})
}
