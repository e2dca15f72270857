package monitor

import (
	"context"
	"time"

	"github.com/flemzord/jobwatch/pkg/jobs"
	"go.opentelemetry.io/otel/attribute"
)

// CycleReport summarizes one monitoring cycle.
type CycleReport struct {
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Results  []Result      `json:"results"`
}

// Count returns the number of results with the given outcome.
func (r CycleReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Incidents returns every incident raised during the cycle.
func (r CycleReport) Incidents() []jobs.Incident {
	var out []jobs.Incident
	for _, res := range r.Results {
		if res.Incident != nil {
			out = append(out, *res.Incident)
		}
	}
	return out
}

// RunCycle checks every enabled job once, in parallel across jobs. A job
// whose previous check is still in flight is skipped. Errors of one job
// never affect the others; they are reported in the results.
func (e *Engine) RunCycle(ctx context.Context) CycleReport {
	active := e.active()
	report := CycleReport{
		Started: e.cfg.Now(),
		Results: make([]Result, len(active)),
	}

	ctx, span := e.cfg.Tracer.Start(ctx, "monitor.cycle")
	defer span.End()
	span.SetAttributes(attribute.Int("cycle.jobs", len(active)))

	inbox := make(chan task)
	pool := newWorkerPool(min(e.cfg.Workers, max(len(active), 1)))
	pool.start(ctx, inbox, func(ctx context.Context, t task) {
		report.Results[t.index] = e.tryCheck(ctx, t.job)
	})

	for i, j := range active {
		inbox <- task{index: i, job: j}
	}
	close(inbox)
	pool.wait()

	report.Duration = e.cfg.Now().Sub(report.Started)
	if e.cfg.Observer != nil {
		e.cfg.Observer.CycleCompleted(report.Duration, len(active))
	}

	e.logger.Info("monitor: cycle completed",
		"jobs", len(active),
		"incidents", len(report.Incidents()),
		"unavailable", report.Count(OutcomeUnavailable),
		"duration", report.Duration,
	)
	return report
}
