package alert

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/jobwatch/pkg/jobs"
)

var t0 = time.Date(2025, 1, 2, 3, 45, 0, 0, time.UTC)

// countingSink records every incident it receives and optionally fails.
type countingSink struct {
	mu   sync.Mutex
	got  []jobs.Incident
	fail error
}

func (s *countingSink) Send(_ context.Context, inc jobs.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, inc)
	return s.fail
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func missed(at time.Time) jobs.Incident {
	return jobs.Incident{ID: "m", JobID: "team/nightly-build", Kind: jobs.KindMissed, DetectedAt: at}
}

type observed struct {
	mu     sync.Mutex
	events []string
}

func (o *observed) AlertDelivered(kind, delivery string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, kind+":"+delivery)
}
