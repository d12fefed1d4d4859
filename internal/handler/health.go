package handler

import (
	"net/http"

	natsclient "github.com/h4d-assistant/book-chat/internal/nats"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	natsClient  *natsclient.Client
	assistantID string
}

// NewHealthHandler creates a new health handler. natsClient is nil when journaling is disabled.
func NewHealthHandler(natsClient *natsclient.Client, assistantID string) *HealthHandler {
	return &HealthHandler{
		natsClient:  natsClient,
		assistantID: assistantID,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.assistantID == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "assistant not provisioned",
		})
		return
	}

	journal := "disabled"
	if h.natsClient != nil {
		if !h.natsClient.IsConnected() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "NATS not connected",
			})
			return
		}
		journal = "enabled"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"journal": journal,
	})
}
