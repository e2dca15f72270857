package gateway

import (
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`  // "ok" or "degraded"
	Jenkins  string `json:"jenkins"` // "up", "down" or "unknown"
	Jobs     int    `json:"jobs"`
	Disabled int    `json:"disabled"`
	Outages  int    `json:"outages"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when healthy, 503 when the job server is unreachable or a
// job's source has been failing past the warning threshold.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok", Jenkins: "unknown"}

		if g.probe != nil {
			if up, known := g.probe.Status(); known {
				resp.Jenkins = "down"
				if up {
					resp.Jenkins = "up"
				}
			}
		}

		if g.monitor == nil {
			resp.Status = "degraded"
		} else {
			resp.Jobs = len(g.monitor.Jobs())
			resp.Disabled = len(g.monitor.Disabled())
			for _, o := range g.monitor.Outages() {
				if o.Warned {
					resp.Outages++
				}
			}
		}
		if resp.Jenkins == "down" || resp.Outages > 0 {
			resp.Status = "degraded"
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
