package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthzHandler handles health check endpoints
type HealthzHandler struct {
	db Pinger // nil when snapshot history is disabled
}

// NewHealthzHandler creates a new healthz handler
func NewHealthzHandler(db Pinger) *HealthzHandler {
	return &HealthzHandler{db: db}
}

// SetupHealthRoutes registers /health and the liveness/readiness probes on the root router.
func SetupHealthRoutes(router *mux.Router, h *HealthzHandler) {
	router.HandleFunc("/health", h.Live).Methods("GET")
	router.HandleFunc("/healthz/live", h.Live).Methods("GET")
	router.HandleFunc("/healthz/ready", h.Ready).Methods("GET")
}

// Live handles GET /healthz/live - the process is alive
func (h *HealthzHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /healthz/ready - dependencies are healthy
func (h *HealthzHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"reason": "database_unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
