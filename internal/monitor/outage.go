package monitor

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Outage describes a job whose execution source has been failing.
type Outage struct {
	JobID     string    `json:"job_id"`
	Since     time.Time `json:"since"`
	Failures  int       `json:"failures"`
	LastError string    `json:"last_error"`

	// Warned is set once Failures reached the warning threshold.
	Warned bool `json:"warned"`
}

// outages counts consecutive SourceUnavailable results per job. It is kept
// apart from tracking records because unavailability must not mutate them.
type outages struct {
	mu        sync.Mutex
	byJob     map[string]*Outage
	warnAfter int
}

func newOutages(warnAfter int) *outages {
	return &outages{
		byJob:     make(map[string]*Outage),
		warnAfter: warnAfter,
	}
}

// fail records one failure and reports whether the warning threshold was
// crossed by this call.
func (o *outages) fail(id string, err error, now time.Time) (Outage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out, ok := o.byJob[id]
	if !ok {
		out = &Outage{JobID: id, Since: now}
		o.byJob[id] = out
	}
	out.Failures++
	out.LastError = err.Error()

	crossed := !out.Warned && out.Failures >= o.warnAfter
	if crossed {
		out.Warned = true
	}
	return *out, crossed
}

// clear ends the outage for id, returning it if one was open.
func (o *outages) clear(id string) (Outage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out, ok := o.byJob[id]
	if !ok {
		return Outage{}, false
	}
	delete(o.byJob, id)
	return *out, true
}

func (o *outages) retain(keep map[string]struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id := range o.byJob {
		if _, ok := keep[id]; !ok {
			delete(o.byJob, id)
		}
	}
}

func (o *outages) snapshot() []Outage {
	o.mu.Lock()
	out := make([]Outage, 0, len(o.byJob))
	for _, v := range o.byJob {
		out = append(out, *v)
	}
	o.mu.Unlock()

	slices.SortFunc(out, func(a, b Outage) int {
		return strings.Compare(a.JobID, b.JobID)
	})
	return out
}
