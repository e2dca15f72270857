package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/jobwatch/internal/tracking"
	"github.com/flemzord/jobwatch/pkg/jobs"
)

// DefaultWindow is the suppression window used when none is configured.
const DefaultWindow = time.Hour

// Delivery describes what Dispatch did with an incident.
type Delivery string

// Delivery outcomes.
const (
	DeliverySent       Delivery = "sent"
	DeliverySuppressed Delivery = "suppressed"
	DeliveryFailed     Delivery = "failed"
	DeliveryCleared    Delivery = "cleared" // recovery not forwarded to sinks
)

// Observer receives one call per dispatched incident.
type Observer interface {
	AlertDelivered(kind, delivery string)
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Window suppresses a repeat alert of the same kind for the same job.
	// Defaults to DefaultWindow.
	Window time.Duration

	// NotifyRecovery forwards recovered incidents to the sink. Recoveries
	// always clear suppression, forwarded or not.
	NotifyRecovery bool

	Observer Observer
	Logger   *slog.Logger
}

// Dispatcher applies the suppression policy and forwards incidents to a
// sink. Suppression state lives on the job's tracking record, so callers
// must serialize Dispatch per job.
type Dispatcher struct {
	sink           Sink
	window         time.Duration
	notifyRecovery bool
	observer       Observer
	logger         *slog.Logger
}

// NewDispatcher creates a dispatcher that forwards to sink.
func NewDispatcher(sink Sink, cfg DispatcherConfig) *Dispatcher {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		sink:           sink,
		window:         cfg.Window,
		notifyRecovery: cfg.NotifyRecovery,
		observer:       cfg.Observer,
		logger:         cfg.Logger,
	}
}

// Window returns the suppression window.
func (d *Dispatcher) Window() time.Duration {
	return d.window
}

// Suppressed reports whether inc would be dropped given rec.
func (d *Dispatcher) Suppressed(inc jobs.Incident, rec tracking.Record) bool {
	if inc.Kind == jobs.KindRecovered || rec.LastAlertKind != inc.Kind {
		return false
	}
	return inc.DetectedAt.Sub(rec.LastAlertAt) < d.window
}

// Dispatch delivers inc unless an alert of the same kind went out for the
// same job within the window, and updates the suppression fields of rec.
// A sink failure is returned wrapped in ErrSink, but rec is updated as if
// the alert had been sent: delivery is at most once.
func (d *Dispatcher) Dispatch(ctx context.Context, inc jobs.Incident, rec *tracking.Record) (Delivery, error) {
	if inc.Kind == jobs.KindRecovered {
		rec.ClearAlert()
		if !d.notifyRecovery {
			d.observe(inc.Kind, DeliveryCleared)
			return DeliveryCleared, nil
		}
		return d.send(ctx, inc)
	}

	if d.Suppressed(inc, *rec) {
		d.logger.Debug("alert: suppressed",
			"job", inc.JobID,
			"kind", inc.Kind,
			"last_sent", rec.LastAlertAt,
		)
		d.observe(inc.Kind, DeliverySuppressed)
		return DeliverySuppressed, nil
	}

	rec.LastAlertKind = inc.Kind
	rec.LastAlertAt = inc.DetectedAt
	return d.send(ctx, inc)
}

func (d *Dispatcher) send(ctx context.Context, inc jobs.Incident) (Delivery, error) {
	if err := d.sink.Send(ctx, inc); err != nil {
		d.observe(inc.Kind, DeliveryFailed)
		return DeliveryFailed, fmt.Errorf("%w: job %s: %w", ErrSink, inc.JobID, err)
	}
	d.logger.Info("alert: sent", "job", inc.JobID, "kind", inc.Kind, "incident", inc.ID)
	d.observe(inc.Kind, DeliverySent)
	return DeliverySent, nil
}

func (d *Dispatcher) observe(kind jobs.IncidentKind, delivery Delivery) {
	if d.observer != nil {
		d.observer.AlertDelivered(string(kind), string(delivery))
	}
}
