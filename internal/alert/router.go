package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/flemzord/jobwatch/pkg/jobs"
)

// Router fans an incident out to every registered sink. With no sink
// registered it falls back to logging the incident.
type Router struct {
	mu       sync.RWMutex
	sinks    map[string]Sink
	fallback Sink
}

// Compile-time interface check.
var _ Sink = (*Router)(nil)

// NewRouter creates an empty Router that logs through logger until a sink
// is registered.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		sinks:    make(map[string]Sink),
		fallback: NewLogSink(logger),
	}
}

// Register adds a sink under name.
// Returns ErrDuplicateSink if the name is already taken.
func (r *Router) Register(name string, s Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSink, name)
	}
	r.sinks[name] = s
	return nil
}

// Unregister removes the sink registered under name.
func (r *Router) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, name)
}

// Get returns the sink registered under name.
func (r *Router) Get(name string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[name]
	return s, ok
}

// SendTo delivers inc to one named sink.
func (r *Router) SendTo(ctx context.Context, name string, inc jobs.Incident) error {
	s, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSink, name)
	}
	return s.Send(ctx, inc)
}

// Send delivers inc to every sink in name order and joins their errors.
// One failing sink does not stop the others.
func (r *Router) Send(ctx context.Context, inc jobs.Incident) error {
	names := r.Names()
	if len(names) == 0 {
		return r.fallback.Send(ctx, inc)
	}

	var errs []error
	for _, name := range names {
		s, ok := r.Get(name)
		if !ok {
			continue
		}
		if err := s.Send(ctx, inc); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Names returns the registered sink names, sorted.
func (r *Router) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}
