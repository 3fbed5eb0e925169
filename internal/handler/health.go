package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/osse101/adlink/internal/database"
	"github.com/osse101/adlink/internal/logger"
)

// ReadinessTimeout bounds the database ping behind /readyz
const ReadinessTimeout = 2 * time.Second

// HealthResponse represents the response for health endpoints
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HandleHealthz provides a basic liveness check
// @Summary Liveness check
// @Description Returns OK if the service is running
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, HealthResponse{Status: HealthStatusOK})
	}
}

// HandleReadyz provides a readiness check that validates database connectivity.
// A nil pool (in-memory storage) is always ready.
// @Summary Readiness check
// @Description Returns OK if the service is ready to accept traffic (database connected)
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /readyz [get]
func HandleReadyz(dbPool database.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dbPool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), ReadinessTimeout)
			defer cancel()

			if err := dbPool.Ping(ctx); err != nil {
				logger.FromContext(r.Context()).Error(LogMsgReadinessFailed, "error", err)
				respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
					Status:  HealthStatusUnavailable,
					Message: HealthMsgDatabaseDown,
				})
				return
			}
		}

		respondJSON(w, http.StatusOK, HealthResponse{Status: HealthStatusOK})
	}
}
