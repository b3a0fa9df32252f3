package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/benx421/smartcards/internal/api"
)

// GetHealth handles GET /health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.healthChecker.Ping(pingCtx); err != nil {
		h.logger.Error("health check failed: ledger unreachable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, api.Health{Status: api.Unhealthy})
		return
	}

	writeJSON(w, http.StatusOK, api.Health{Status: api.Healthy})
}
