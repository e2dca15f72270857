package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/jobwatch/internal/monitor"
	"github.com/flemzord/jobwatch/internal/tracking"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Version         string            `json:"version,omitempty"`
	Uptime          float64           `json:"uptime_seconds"`
	Jobs            int               `json:"jobs"`
	States          map[string]int    `json:"states"`
	Disabled        map[string]string `json:"disabled,omitempty"`
	Outages         []monitor.Outage  `json:"outages"`
	FeedSubscribers int               `json:"feed_subscribers"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.monitor == nil {
			http.Error(w, "monitor not available", http.StatusServiceUnavailable)
			return
		}

		resp := StatusResponse{
			Version:         g.version,
			Uptime:          time.Since(g.startedAt).Truncate(time.Second).Seconds(),
			States:          make(map[string]int),
			Outages:         g.monitor.Outages(),
			FeedSubscribers: g.feed.Subscribers(),
		}

		store := g.monitor.Store()
		for _, job := range g.monitor.Jobs() {
			resp.Jobs++
			rec, _ := store.Get(job.ID)
			resp.States[stateName(rec.State)]++
		}
		if disabled := g.monitor.Disabled(); len(disabled) > 0 {
			resp.Disabled = make(map[string]string, len(disabled))
			for id, err := range disabled {
				resp.Disabled[id] = err.Error()
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func stateName(s tracking.State) string {
	if s == tracking.StatePending {
		return "pending"
	}
	return string(s)
}
