package api

import (
	"net/http"
)

type healthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	PushSend string `json:"push_send"`
}

// HealthHandler reports liveness plus whether sends are possible: an
// absent VAPID identity means the service registers subscriptions but
// delivers nothing until keys are configured.
func (h *PushHandler) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pushSend := "enabled"
		if _, ok := h.keys.Identity(); !ok {
			pushSend = "disabled"
		}

		respondJSON(w, http.StatusOK, healthResponse{
			Status:   "healthy",
			Service:  "gamewake",
			PushSend: pushSend,
		})
	}
}
