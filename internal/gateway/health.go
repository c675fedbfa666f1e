package gateway

import (
	"net/http"
	"time"

	"github.com/sori-ai/sori/internal/provider"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string                   `json:"status"` // "ok" or "degraded"
	Uptime   int64                    `json:"uptime_seconds"`
	Sessions int                      `json:"sessions"`
	Gateways []provider.GatewayStatus `json:"gateways,omitempty"`
}

// handleHealth returns 200 while at least one model gateway is available
// and 503 once every gateway is in cooldown or dead.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if !g.startedAt.IsZero() {
			resp.Uptime = int64(time.Since(g.startedAt).Seconds())
		}
		if g.conv != nil {
			resp.Sessions = g.conv.Registry().Len()
		}

		if g.chain != nil {
			resp.Gateways = g.chain.Status()
			available := false
			for _, s := range resp.Gateways {
				available = available || s.Available
			}
			if !available {
				resp.Status = "degraded"
			}
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
