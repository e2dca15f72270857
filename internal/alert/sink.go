// Package alert de-duplicates incidents and hands the survivors to
// notification sinks.
package alert

import (
	"context"
	"errors"

	"github.com/flemzord/jobwatch/pkg/jobs"
)

// Sentinel errors for alert delivery.
var (
	// ErrSink wraps every failure reported by a notification sink.
	ErrSink = errors.New("alert: sink error")

	// ErrDuplicateSink indicates a sink with the same name is already
	// registered.
	ErrDuplicateSink = errors.New("alert: duplicate sink name")

	// ErrUnknownSink indicates no sink is registered under a name.
	ErrUnknownSink = errors.New("alert: unknown sink")
)

// Sink delivers a formatted incident to some notification channel.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, inc jobs.Incident) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, inc jobs.Incident) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, inc jobs.Incident) error {
	return f(ctx, inc)
}
