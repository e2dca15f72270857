package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/jobwatch/internal/alert"
	"github.com/flemzord/jobwatch/internal/tracking"
	"github.com/flemzord/jobwatch/pkg/jobs"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultSourceTimeout = 30 * time.Second
	defaultWarnAfter     = 5
)

// ErrUnknownJob is returned by CheckNow for an id that is not configured.
var ErrUnknownJob = errors.New("monitor: unknown job")

// Observer receives engine measurements. Implemented by telemetry.Metrics.
type Observer interface {
	CheckCompleted(jobID, outcome string, d time.Duration)
	SourceState(jobID string, up bool)
	CycleCompleted(d time.Duration, checked int)
}

// Config wires an Engine.
type Config struct {
	Source     Source
	Store      *tracking.Store
	Dispatcher *alert.Dispatcher
	Jobs       []Job

	// Policy defaults to PolicyObservePeriod.
	Policy FirstCheckPolicy

	// SourceTimeout bounds each call to Source. Defaults to 30 seconds.
	SourceTimeout time.Duration

	// Workers bounds concurrent checks in a cycle. Defaults to DefaultWorkers.
	Workers int

	// UnavailableWarnAfter is the number of consecutive SourceUnavailable
	// results after which a job's outage is logged as a warning. Defaults to 5.
	UnavailableWarnAfter int

	// JobURL links incidents to the job on the server. Optional.
	JobURL func(id string) string

	Observer Observer
	Tracer   trace.Tracer
	Logger   *slog.Logger

	// Now is injectable for testing. Defaults to time.Now.
	Now func() time.Time
}

func (c *Config) withDefaults() {
	if c.Policy == "" {
		c.Policy = PolicyObservePeriod
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = defaultSourceTimeout
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.UnavailableWarnAfter <= 0 {
		c.UnavailableWarnAfter = defaultWarnAfter
	}
	if c.Store == nil {
		c.Store = tracking.NewStore()
	}
	if c.Tracer == nil {
		c.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Engine runs conformance checks. Checks of different jobs run in parallel;
// checks of the same job are serialized by a lane lock so a job's tracking
// record is only ever read, decided and written by one check at a time.
type Engine struct {
	cfg     Config
	store   *tracking.Store
	lanes   *tracking.LaneLock
	outages *outages
	logger  *slog.Logger

	mu       sync.RWMutex
	jobs     []Job
	disabled map[string]error
}

// NewEngine creates an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New("monitor: source is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("monitor: dispatcher is required")
	}
	if cfg.Policy != "" && !cfg.Policy.Valid() {
		return nil, fmt.Errorf("monitor: unknown first check policy %q", cfg.Policy)
	}
	cfg.withDefaults()

	e := &Engine{
		cfg:      cfg,
		store:    cfg.Store,
		lanes:    tracking.NewLaneLock(),
		outages:  newOutages(cfg.UnavailableWarnAfter),
		logger:   cfg.Logger,
		disabled: make(map[string]error),
	}
	e.SetJobs(cfg.Jobs)
	return e, nil
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.cfg.Now()
}

// Store returns the tracking store.
func (e *Engine) Store() *tracking.Store {
	return e.store
}

// Source returns the execution source.
func (e *Engine) Source() Source {
	return e.cfg.Source
}

// Jobs returns the configured jobs ordered by id.
func (e *Engine) Jobs() []Job {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.jobs)
}

// Job returns the configured job with the given id.
func (e *Engine) Job(id string) (Job, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, j := range e.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}

// Disabled returns the jobs taken out of rotation because their schedule
// could not be evaluated, with the reason.
func (e *Engine) Disabled() map[string]error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]error, len(e.disabled))
	for id, err := range e.disabled {
		out[id] = err
	}
	return out
}

// Outages returns the jobs whose execution source is currently failing.
func (e *Engine) Outages() []Outage {
	return e.outages.snapshot()
}

// SetJobs replaces the job set. Tracking records, lanes and outages of jobs
// no longer present are dropped; the ids removed from the store are
// returned. Records of jobs that stay keep their state.
func (e *Engine) SetJobs(list []Job) []string {
	sorted := slices.Clone(list)
	slices.SortFunc(sorted, func(a, b Job) int { return strings.Compare(a.ID, b.ID) })

	keep := make(map[string]struct{}, len(sorted))
	for _, j := range sorted {
		keep[j.ID] = struct{}{}
	}

	e.mu.Lock()
	e.jobs = sorted
	e.disabled = make(map[string]error)
	e.mu.Unlock()

	removed := e.store.Retain(keep)
	e.lanes.Cleanup(keep)
	e.outages.retain(keep)
	return removed
}

// Outcome classifies the result of one check.
type Outcome string

// Check outcomes.
const (
	OutcomePending     Outcome = "pending"   // not judged yet
	OutcomeCompliant   Outcome = "compliant" // built at or after the due instant
	OutcomeBehind      Outcome = "behind"    // not built since due, within threshold
	OutcomeMissed      Outcome = "missed"
	OutcomeFailed      Outcome = "failed"
	OutcomeRecovered   Outcome = "recovered"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeSkipped     Outcome = "skipped" // previous check still in flight
	OutcomeAbandoned   Outcome = "abandoned"
	OutcomeError       Outcome = "error"
)

// Result reports one check.
type Result struct {
	JobID    string         `json:"job_id"`
	Outcome  Outcome        `json:"outcome"`
	Due      time.Time      `json:"due,omitzero"`
	Next     time.Time      `json:"next,omitzero"`
	Incident *jobs.Incident `json:"incident,omitempty"`
	Delivery alert.Delivery `json:"delivery,omitempty"`
	Duration time.Duration  `json:"duration"`
	Err      error          `json:"-"`
}

// Error returns the error text, if any.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// CheckNow checks the job with the given id, waiting for any check of the
// same job already in flight.
func (e *Engine) CheckNow(ctx context.Context, id string) (Result, error) {
	job, ok := e.Job(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return e.Check(ctx, job), nil
}

// Check runs one read-decide-write cycle for job, waiting for its lane.
func (e *Engine) Check(ctx context.Context, job Job) Result {
	e.lanes.Acquire(job.ID)
	defer e.lanes.Release(job.ID)
	return e.check(ctx, job)
}

// tryCheck is like Check but skips the job if a check is already running.
func (e *Engine) tryCheck(ctx context.Context, job Job) Result {
	if !e.lanes.TryAcquire(job.ID) {
		e.logger.Warn("monitor: previous check still running, skipping", "job", job.ID)
		return Result{JobID: job.ID, Outcome: OutcomeSkipped}
	}
	defer e.lanes.Release(job.ID)
	return e.check(ctx, job)
}

func (e *Engine) check(ctx context.Context, job Job) (res Result) {
	start := e.cfg.Now()
	res.JobID = job.ID

	ctx, span := e.cfg.Tracer.Start(ctx, "monitor.check",
		trace.WithAttributes(attribute.String("job.id", job.ID)))
	defer func() {
		res.Duration = e.cfg.Now().Sub(start)
		span.SetAttributes(attribute.String("check.outcome", string(res.Outcome)))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.End()
		if e.cfg.Observer != nil {
			e.cfg.Observer.CheckCompleted(job.ID, string(res.Outcome), res.Duration)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.SourceTimeout)
	exec, err := e.cfg.Source.FetchLatest(fetchCtx, job.ID)
	cancel()
	if err != nil {
		res.Outcome = OutcomeUnavailable
		res.Err = fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, job.ID, err)
		e.sourceFailed(job.ID, err)
		return res
	}
	e.sourceRecovered(job.ID)

	// Past this point the check runs to completion; before it, shutdown
	// leaves no trace.
	if err := ctx.Err(); err != nil {
		res.Outcome = OutcomeAbandoned
		res.Err = err
		return res
	}

	now := e.cfg.Now()
	rec, ok := e.store.Get(job.ID)
	if !ok {
		rec = tracking.Record{JobID: job.ID}
	}

	dec, err := Decide(job, rec, exec, now, e.cfg.Policy)
	if err != nil {
		res.Outcome = OutcomeError
		res.Err = err
		e.disable(job.ID, err)
		return res
	}
	res.Due = dec.Due
	res.Outcome = outcomeOf(dec)
	if next, err := job.Schedule.NextAfter(now); err == nil {
		res.Next = next
	}

	if dec.Incident != nil {
		inc := *dec.Incident
		inc.ID = uuid.NewString()
		if e.cfg.JobURL != nil {
			inc.JobURL = e.cfg.JobURL(job.ID)
		}
		res.Incident = &inc

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.SourceTimeout)
		res.Delivery, err = e.cfg.Dispatcher.Dispatch(sendCtx, inc, &dec.Record)
		cancel()
		if err != nil {
			res.Err = err
			e.logger.Error("monitor: alert delivery failed",
				"job", job.ID,
				"kind", inc.Kind,
				"error", err,
			)
		}
		span.AddEvent("incident", trace.WithAttributes(
			attribute.String("incident.kind", string(inc.Kind)),
			attribute.String("incident.delivery", string(res.Delivery)),
		))
	}

	if !e.commit(dec.Record) {
		e.logger.Debug("monitor: job removed during check, record dropped", "job", job.ID)
		return res
	}

	e.logger.Debug("monitor: job checked",
		"job", job.ID,
		"outcome", res.Outcome,
		"due", dec.Due,
		"last_build", dec.Record.LastBuildTime,
	)
	return res
}

// commit stores rec unless its job was removed while the check ran. The
// read lock keeps SetJobs from swapping the job set between the lookup and
// the write, so a record either lands before SetJobs prunes the store or is
// not written at all.
func (e *Engine) commit(rec tracking.Record) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !slices.ContainsFunc(e.jobs, func(j Job) bool { return j.ID == rec.JobID }) {
		return false
	}
	e.store.Put(rec)
	return true
}

func outcomeOf(d Decision) Outcome {
	if d.Incident != nil {
		switch d.Incident.Kind {
		case jobs.KindFailed:
			return OutcomeFailed
		case jobs.KindMissed:
			return OutcomeMissed
		case jobs.KindRecovered:
			return OutcomeRecovered
		}
	}
	switch {
	case d.Compliant:
		return OutcomeCompliant
	case !d.Judged:
		return OutcomePending
	case d.Record.State == tracking.StateMissed:
		return OutcomeMissed
	default:
		return OutcomeBehind
	}
}

func (e *Engine) sourceFailed(id string, err error) {
	out, crossed := e.outages.fail(id, err, e.cfg.Now())
	if e.cfg.Observer != nil {
		e.cfg.Observer.SourceState(id, false)
	}
	if crossed {
		e.logger.Warn("monitor: execution source unreachable for job",
			"job", id,
			"failures", out.Failures,
			"since", out.Since,
			"error", err,
		)
		return
	}
	e.logger.Debug("monitor: execution source unavailable", "job", id, "error", err)
}

func (e *Engine) sourceRecovered(id string) {
	out, had := e.outages.clear(id)
	if e.cfg.Observer != nil {
		e.cfg.Observer.SourceState(id, true)
	}
	if had && out.Warned {
		e.logger.Info("monitor: execution source reachable again",
			"job", id,
			"failures", out.Failures,
			"down_for", e.cfg.Now().Sub(out.Since).Truncate(time.Second),
		)
	}
}

func (e *Engine) disable(id string, err error) {
	e.mu.Lock()
	e.disabled[id] = err
	e.mu.Unlock()
	e.logger.Error("monitor: schedule cannot be evaluated, job disabled until reload",
		"job", id,
		"error", err,
	)
}

func (e *Engine) active() []Job {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Job, 0, len(e.jobs))
	for _, j := range e.jobs {
		if !j.Enabled {
			continue
		}
		if _, off := e.disabled[j.ID]; off {
			continue
		}
		out = append(out, j)
	}
	return out
}
