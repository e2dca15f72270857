package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/jobwatch/internal/monitor"
)

// Cycler runs one monitoring cycle. Implemented by *monitor.Engine.
type Cycler interface {
	RunCycle(ctx context.Context) monitor.CycleReport
}

// CycleJob runs a monitoring cycle every Interval.
type CycleJob struct {
	Engine   Cycler
	Interval time.Duration // empty = 60s
	Logger   *slog.Logger
}

// Compile-time interface check.
var _ Job = (*CycleJob)(nil)

// Name implements Job.
func (j *CycleJob) Name() string { return "monitor_cycle" }

// Schedule implements Job.
func (j *CycleJob) Schedule() string {
	interval := j.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return "@every " + interval.String()
}

// Run checks every enabled job once.
func (j *CycleJob) Run(ctx context.Context) error {
	report := j.Engine.RunCycle(ctx)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cron: monitor cycle cancelled after %d checks: %w", len(report.Results), err)
	}
	return nil
}

// Pinger checks that the execution source is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProbeObserver records the probe result.
type ProbeObserver interface {
	SourceReachable(up bool)
}

// ProbeJob calls the execution source root on a schedule. A failure is
// logged as a warning; monitoring carries on regardless.
type ProbeJob struct {
	Source       Pinger
	Observer     ProbeObserver // optional
	Timeout      time.Duration // empty = 30s
	ScheduleExpr string        // empty = default "*/5 * * * *"
	Logger       *slog.Logger

	mu     sync.Mutex
	down   bool
	probed bool
}

// Compile-time interface check.
var _ Job = (*ProbeJob)(nil)

// Name implements Job.
func (j *ProbeJob) Name() string { return "jenkins_probe" }

// Schedule implements Job.
func (j *ProbeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run pings the source once.
func (j *ProbeJob) Run(ctx context.Context) error {
	_, err := j.Probe(ctx)
	return err
}

// Probe pings the source and reports whether it is reachable. The error
// is only non-nil when ctx was cancelled.
func (j *ProbeJob) Probe(ctx context.Context) (bool, error) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	err := j.Source.Ping(pingCtx)
	cancel()

	if ctx.Err() != nil {
		return false, fmt.Errorf("cron: probe cancelled: %w", ctx.Err())
	}

	up := err == nil
	if j.Observer != nil {
		j.Observer.SourceReachable(up)
	}

	j.mu.Lock()
	wasDown := j.down
	j.down = !up
	j.probed = true
	j.mu.Unlock()

	switch {
	case !up:
		j.logger().Warn("cron: jenkins server unreachable", "error", err)
	case wasDown:
		j.logger().Info("cron: jenkins server reachable again")
	default:
		j.logger().Debug("cron: jenkins server reachable")
	}
	return up, nil
}

// Status returns the result of the last probe. known is false until the
// first probe completes.
func (j *ProbeJob) Status() (up, known bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return !j.down, j.probed
}

func (j *ProbeJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
