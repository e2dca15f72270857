// Package monitortest provides test doubles for the monitor package.
package monitortest

import (
	"context"
	"errors"
	"sync"

	"github.com/flemzord/jobwatch/pkg/jobs"
)

// ErrNoExecution is returned by MockSource for a job with nothing set.
var ErrNoExecution = errors.New("monitortest: no execution set")

// MockSource is an in-memory execution source. Per-job errors take
// precedence over executions. Block, when set, is waited on (or ctx) before
// each fetch returns.
type MockSource struct {
	mu    sync.Mutex
	execs map[string]jobs.Execution
	errs  map[string]error
	calls map[string]int

	Block chan struct{}
}

// NewMockSource creates an empty source.
func NewMockSource() *MockSource {
	return &MockSource{
		execs: make(map[string]jobs.Execution),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// Set makes FetchLatest return exec for id.
func (m *MockSource) Set(id string, exec jobs.Execution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs[id] = exec
	delete(m.errs, id)
}

// Fail makes FetchLatest return err for id. A nil err clears the failure.
func (m *MockSource) Fail(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, id)
		return
	}
	m.errs[id] = err
}

// Calls returns the number of fetches made for id.
func (m *MockSource) Calls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

// FetchLatest implements monitor.Source.
func (m *MockSource) FetchLatest(ctx context.Context, id string) (jobs.Execution, error) {
	m.mu.Lock()
	m.calls[id]++
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return jobs.Execution{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[id]; ok {
		return jobs.Execution{}, err
	}
	exec, ok := m.execs[id]
	if !ok {
		return jobs.Execution{}, ErrNoExecution
	}
	return exec, nil
}

// RecordingSink records every incident it receives.
type RecordingSink struct {
	mu        sync.Mutex
	incidents []jobs.Incident

	// Err is returned by Send when set.
	Err error
}

// Send implements alert.Sink.
func (s *RecordingSink) Send(_ context.Context, inc jobs.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = append(s.incidents, inc)
	return s.Err
}

// Incidents returns a copy of the received incidents.
func (s *RecordingSink) Incidents() []jobs.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]jobs.Incident, len(s.incidents))
	copy(out, s.incidents)
	return out
}

// Kinds returns the kinds of the received incidents, in order.
func (s *RecordingSink) Kinds() []jobs.IncidentKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]jobs.IncidentKind, len(s.incidents))
	for i, inc := range s.incidents {
		out[i] = inc.Kind
	}
	return out
}
