package alert

import (
	"errors"
	"testing"
	"time"

	"github.com/flemzord/jobwatch/internal/tracking"
	"github.com/flemzord/jobwatch/pkg/jobs"
)

func TestDispatch_DuplicateWithinWindowSuppressed(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	d := NewDispatcher(sink, DispatcherConfig{Window: time.Hour})
	rec := tracking.Record{JobID: "team/nightly-build"}

	first, err := d.Dispatch(t.Context(), missed(t0), &rec)
	if err != nil || first != DeliverySent {
		t.Fatalf("first dispatch = %s, %v; want sent", first, err)
	}
	second, err := d.Dispatch(t.Context(), missed(t0.Add(59*time.Minute)), &rec)
	if err != nil || second != DeliverySuppressed {
		t.Fatalf("second dispatch = %s, %v; want suppressed", second, err)
	}

	if sink.count() != 1 {
		t.Errorf("sink received %d notifications, want exactly 1", sink.count())
	}
}

func TestDispatch_AfterWindowSentAgain(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	d := NewDispatcher(sink, DispatcherConfig{Window: time.Hour})
	rec := tracking.Record{JobID: "team/nightly-build"}

	_, _ = d.Dispatch(t.Context(), missed(t0), &rec)
	got, _ := d.Dispatch(t.Context(), missed(t0.Add(time.Hour)), &rec)

	if got != DeliverySent {
		t.Errorf("dispatch after a full window = %s, want sent", got)
	}
	if !rec.LastAlertAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("LastAlertAt = %s, want %s", rec.LastAlertAt, t0.Add(time.Hour))
	}
}

func TestDispatch_DifferentKindNotSuppressed(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	d := NewDispatcher(sink, DispatcherConfig{})
	rec := tracking.Record{JobID: "team/nightly-build"}

	_, _ = d.Dispatch(t.Context(), missed(t0), &rec)
	failed := jobs.Incident{JobID: "team/nightly-build", Kind: jobs.KindFailed, DetectedAt: t0.Add(time.Minute)}
	got, _ := d.Dispatch(t.Context(), failed, &rec)

	if got != DeliverySent {
		t.Errorf("failed after missed = %s, want sent", got)
	}
	if rec.LastAlertKind != jobs.KindFailed {
		t.Errorf("LastAlertKind = %s, want failed", rec.LastAlertKind)
	}
}

func TestDispatch_RecoveredBypassesAndClears(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	d := NewDispatcher(sink, DispatcherConfig{NotifyRecovery: true})
	rec := tracking.Record{JobID: "team/nightly-build"}

	_, _ = d.Dispatch(t.Context(), missed(t0), &rec)

	recovered := jobs.Incident{JobID: "team/nightly-build", Kind: jobs.KindRecovered, DetectedAt: t0.Add(time.Minute)}
	got, err := d.Dispatch(t.Context(), recovered, &rec)
	if err != nil || got != DeliverySent {
		t.Fatalf("recovered dispatch = %s, %v; want sent", got, err)
	}
	if rec.LastAlertKind != "" || !rec.LastAlertAt.IsZero() {
		t.Fatalf("recovery should clear suppression, got %+v", rec)
	}

	// A new miss right after recovery is not suppressed.
	got, _ = d.Dispatch(t.Context(), missed(t0.Add(2*time.Minute)), &rec)
	if got != DeliverySent {
		t.Errorf("miss after recovery = %s, want sent", got)
	}
	if sink.count() != 3 {
		t.Errorf("sink received %d, want 3", sink.count())
	}
}

func TestDispatch_RecoveryNotForwardedStillClears(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	d := NewDispatcher(sink, DispatcherConfig{NotifyRecovery: false})
	rec := tracking.Record{JobID: "j", LastAlertKind: jobs.KindFailed, LastAlertAt: t0}

	got, err := d.Dispatch(t.Context(), jobs.Incident{JobID: "j", Kind: jobs.KindRecovered, DetectedAt: t0}, &rec)
	if err != nil || got != DeliveryCleared {
		t.Fatalf("dispatch = %s, %v; want cleared", got, err)
	}
	if sink.count() != 0 {
		t.Error("recovery should not reach the sink")
	}
	if rec.LastAlertKind != "" {
		t.Error("suppression record should be cleared")
	}
}

func TestDispatch_SinkErrorKeepsBookkeeping(t *testing.T) {
	t.Parallel()

	sink := &countingSink{fail: errors.New("smtp: connection refused")}
	obs := &observed{}
	d := NewDispatcher(sink, DispatcherConfig{Observer: obs})
	rec := tracking.Record{JobID: "team/nightly-build"}

	got, err := d.Dispatch(t.Context(), missed(t0), &rec)
	if !errors.Is(err, ErrSink) {
		t.Fatalf("error = %v, want ErrSink", err)
	}
	if got != DeliveryFailed {
		t.Errorf("delivery = %s, want failed", got)
	}
	if rec.LastAlertKind != jobs.KindMissed || !rec.LastAlertAt.Equal(t0) {
		t.Errorf("suppression should be recorded despite the failure: %+v", rec)
	}

	// The flapping sink is not hammered again within the window.
	got, _ = d.Dispatch(t.Context(), missed(t0.Add(time.Minute)), &rec)
	if got != DeliverySuppressed {
		t.Errorf("retry within window = %s, want suppressed", got)
	}
	if sink.count() != 1 {
		t.Errorf("sink called %d times, want 1", sink.count())
	}

	if len(obs.events) != 2 || obs.events[0] != "missed:failed" || obs.events[1] != "missed:suppressed" {
		t.Errorf("observer events = %v", obs.events)
	}
}

func TestNewDispatcher_DefaultWindow(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(&countingSink{}, DispatcherConfig{})
	if d.Window() != DefaultWindow {
		t.Errorf("Window = %s, want %s", d.Window(), DefaultWindow)
	}
}
