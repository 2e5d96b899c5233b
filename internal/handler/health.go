package handler

import (
	"net/http"

	"github.com/untilt/messenger/internal/relay"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	relayClient *relay.Client
}

// NewHealthHandler creates a new health handler. relayClient may be nil when
// the relay is disabled.
func NewHealthHandler(relayClient *relay.Client) *HealthHandler {
	return &HealthHandler{relayClient: relayClient}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.relayClient != nil && !h.relayClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "relay not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
