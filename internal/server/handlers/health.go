package handlers

import (
	"net/http"
	"time"

	"github.com/agentstation/kbmirror/internal/server/response"
)

// HandleHealth handles GET /healthz (liveness probe).
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "ok",
		"service": "kbmirror",
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}
