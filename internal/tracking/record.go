// Package tracking holds the per-job state the conformance engine carries
// between checks.
package tracking

import (
	"time"

	"github.com/flemzord/jobwatch/pkg/jobs"
)

// State is the engine's current verdict for a job.
type State string

// Job states. The zero value means the job has not been judged yet.
const (
	StatePending State = ""
	StateOK      State = "ok"
	StateMissed  State = "missed"
	StateFailed  State = "failed"
)

// Record is the tracking state for one job. Records are values: the store
// hands out copies and takes them back whole through Put.
type Record struct {
	JobID string `json:"job_id"`

	// FirstSeenAt is when the job was first checked successfully.
	FirstSeenAt   time.Time `json:"first_seen_at,omitzero"`
	LastCheckedAt time.Time `json:"last_checked_at,omitzero"`

	LastBuildTime   time.Time   `json:"last_build_time,omitzero"`
	LastBuildNumber int64       `json:"last_build_number,omitempty"`
	LastBuildStatus jobs.Status `json:"last_build_status,omitempty"`

	// ConsecutiveMisses counts due instants in a row that passed without a
	// build. LastMissedDue is the most recent one counted.
	ConsecutiveMisses uint      `json:"consecutive_misses"`
	LastMissedDue     time.Time `json:"last_missed_due,omitzero"`

	State State `json:"state,omitempty"`

	LastAlertKind jobs.IncidentKind `json:"last_alert_kind,omitempty"`
	LastAlertAt   time.Time         `json:"last_alert_at,omitzero"`
}

// Seeded reports whether the record has been through at least one check.
func (r Record) Seeded() bool {
	return !r.FirstSeenAt.IsZero()
}

// ClearAlert forgets the last alert sent, so the next alert of any kind is
// delivered.
func (r *Record) ClearAlert() {
	r.LastAlertKind = ""
	r.LastAlertAt = time.Time{}
}
