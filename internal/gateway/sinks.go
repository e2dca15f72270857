package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flemzord/jobwatch/internal/alert"
	"github.com/flemzord/jobwatch/pkg/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// testJobID marks incidents sent by the sink test endpoint.
const testJobID = "jobwatch/sink-test"

const sinkTestTimeout = 30 * time.Second

type sinkTestJSON struct {
	Sink     string `json:"sink"`
	Incident string `json:"incident"`
	Error    string `json:"error,omitempty"`
}

func (g *Gateway) handleListSinks() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.sinks == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "alert routing not available"})
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"sinks": g.sinks.Names()})
	}
}

// handleTestSink sends a synthetic missed-run incident to one sink, so an
// operator can check delivery without waiting for a real miss. It bypasses
// de-duplication.
func (g *Gateway) handleTestSink() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.sinks == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "alert routing not available"})
			return
		}

		name := chi.URLParam(r, "name")
		now := time.Now().UTC()
		inc := jobs.Incident{
			ID:         uuid.NewString(),
			JobID:      testJobID,
			Kind:       jobs.KindMissed,
			DetectedAt: now,
			Schedule:   "0 0 * * * *",
			Threshold:  time.Hour,
			ExpectedAt: now.Add(-90 * time.Minute),
			OverdueBy:  90 * time.Minute,
		}

		ctx, cancel := context.WithTimeout(r.Context(), sinkTestTimeout)
		defer cancel()
		err := g.sinks.SendTo(ctx, name, inc)

		resp := sinkTestJSON{Sink: name, Incident: inc.ID}
		switch {
		case errors.Is(err, alert.ErrUnknownSink):
			resp.Error = err.Error()
			writeJSON(w, http.StatusNotFound, resp)
		case err != nil:
			resp.Error = g.redact(err.Error())
			g.logger.Warn("gateway: sink test failed", "sink", name, "error", err)
			writeJSON(w, http.StatusBadGateway, resp)
		default:
			g.logger.Info("gateway: sink test delivered", "sink", name)
			writeJSON(w, http.StatusOK, resp)
		}
	}
}
