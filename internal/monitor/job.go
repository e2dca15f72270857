// Package monitor decides, check after check, whether each job runs on its
// schedule and succeeds, and raises incidents when it does not.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/jobwatch/internal/schedule"
	"github.com/flemzord/jobwatch/pkg/jobs"
)

// ErrSourceUnavailable wraps any failure to read a job's latest execution:
// network, authentication, or timeout. It never produces an incident.
var ErrSourceUnavailable = errors.New("monitor: execution source unavailable")

// Source supplies the latest execution of a job.
type Source interface {
	FetchLatest(ctx context.Context, jobID string) (jobs.Execution, error)
}

// Spec is the configuration of one monitored job. Cron must already be in
// six-field form.
type Spec struct {
	ID        string
	Cron      string
	Threshold time.Duration
	Enabled   bool
}

// Job is a Spec with its schedule parsed.
type Job struct {
	Spec
	Schedule *schedule.Schedule
}

// NewJob parses spec.Cron.
func NewJob(spec Spec) (Job, error) {
	if spec.ID == "" {
		return Job{}, errors.New("monitor: job id is required")
	}
	sched, err := schedule.Parse(spec.Cron)
	if err != nil {
		return Job{}, fmt.Errorf("monitor: job %s: %w", spec.ID, err)
	}
	return Job{Spec: spec, Schedule: sched}, nil
}

// MustJob is like NewJob but panics on error. Intended for tests.
func MustJob(spec Spec) Job {
	j, err := NewJob(spec)
	if err != nil {
		panic(err)
	}
	return j
}
