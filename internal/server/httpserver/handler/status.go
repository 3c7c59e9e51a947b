package handler

import "net/http"

// handleStatus handles GET /v1/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Initialized() {
		h.writeError(w, r, http.StatusServiceUnavailable, "PS-REG-5000", "repository not initialized", nil)
		return
	}
	status, err := h.status.Status(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, status)
}
