// Package cron drives periodic background work: the monitoring cycle and
// the execution source connectivity probe.
package cron

import "context"

// Job defines a periodic background task.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a cron expression with optional seconds field
	// (e.g., "*/5 * * * *") or a descriptor such as "@every 1m".
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}
