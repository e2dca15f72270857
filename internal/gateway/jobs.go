package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/jobwatch/internal/monitor"
	"github.com/flemzord/jobwatch/internal/tracking"
	"github.com/go-chi/chi/v5"
)

const (
	defaultNextRuns = 3
	maxNextRuns     = 50
)

// jobJSON is a serializable view of one configured job.
type jobJSON struct {
	ID        string           `json:"id"`
	Schedule  string           `json:"schedule"`
	Threshold string           `json:"threshold"`
	Enabled   bool             `json:"enabled"`
	Disabled  string           `json:"disabled_reason,omitempty"`
	State     string           `json:"state"`
	Record    *tracking.Record `json:"record,omitempty"`
	NextRuns  []time.Time      `json:"next_runs,omitempty"`
}

// describeJob builds the view of job with up to n upcoming due instants.
func describeJob(m Monitor, job monitor.Job, n int) jobJSON {
	out := jobJSON{
		ID:        job.ID,
		Schedule:  job.Schedule.String(),
		Threshold: job.Threshold.String(),
		Enabled:   job.Enabled,
		State:     stateName(tracking.StatePending),
	}
	if err, ok := m.Disabled()[job.ID]; ok {
		out.Disabled = err.Error()
	}
	if rec, ok := m.Store().Get(job.ID); ok {
		out.Record = &rec
		out.State = stateName(rec.State)
	}
	if n > 0 {
		// An unsatisfiable schedule simply has no upcoming runs.
		out.NextRuns, _ = job.Schedule.Upcoming(m.Now(), n)
	}
	return out
}

// handleListJobs lists every configured job.
func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.monitor == nil {
			http.Error(w, "monitor not available", http.StatusServiceUnavailable)
			return
		}
		list := g.monitor.Jobs()
		out := make([]jobJSON, 0, len(list))
		for _, job := range list {
			out = append(out, describeJob(g.monitor, job, 1))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetJob returns one job. Job ids contain slashes, so the id is the
// whole wildcard. ?next=N sets how many upcoming runs are listed.
func (g *Gateway) handleGetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.monitor == nil {
			http.Error(w, "monitor not available", http.StatusServiceUnavailable)
			return
		}
		id := strings.Trim(chi.URLParam(r, "*"), "/")
		job, ok := g.monitor.Job(id)
		if !ok {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}

		n := defaultNextRuns
		if raw := r.URL.Query().Get("next"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 || v > maxNextRuns {
				http.Error(w, "next must be between 0 and "+strconv.Itoa(maxNextRuns), http.StatusBadRequest)
				return
			}
			n = v
		}
		writeJSON(w, http.StatusOK, describeJob(g.monitor, job, n))
	}
}

// handleCheckJob runs an immediate check: POST /api/jobs/{id}/check.
func (g *Gateway) handleCheckJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.monitor == nil {
			http.Error(w, "monitor not available", http.StatusServiceUnavailable)
			return
		}
		id, ok := strings.CutSuffix(strings.Trim(chi.URLParam(r, "*"), "/"), "/check")
		if !ok || id == "" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		res, err := g.monitor.CheckNow(r.Context(), id)
		if errors.Is(err, monitor.ErrUnknownJob) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		g.logger.Info("gateway: manual check", "job", id, "outcome", string(res.Outcome))
		writeJSON(w, http.StatusOK, checkJSON{Result: res, Error: g.redact(res.Error())})
	}
}

// checkJSON adds the error text, which Result does not serialize.
type checkJSON struct {
	monitor.Result
	Error string `json:"error,omitempty"`
}

// handleRecentIncidents lists the last incidents delivered to the feed.
func (g *Gateway) handleRecentIncidents() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, g.feed.Recent())
	}
}

func (g *Gateway) redact(s string) string {
	if g.redactor == nil {
		return s
	}
	return g.redactor.Redact(s)
}
