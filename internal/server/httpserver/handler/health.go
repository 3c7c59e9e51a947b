package handler

import (
	"net/http"
	"time"
)

// handleHealth handles GET /health. It succeeds while the process runs.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthStatus{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready. It succeeds once the repository is
// initialized.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Initialized() {
		h.writeError(w, r, http.StatusServiceUnavailable, "PS-REG-5000", "repository not initialized", nil)
		return
	}
	h.writeJSON(w, r, http.StatusOK, HealthStatus{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
