package jobs

import "time"

// IncidentKind classifies an alert-worthy condition.
type IncidentKind string

// Incident kinds.
const (
	KindMissed    IncidentKind = "missed"
	KindFailed    IncidentKind = "failed"
	KindRecovered IncidentKind = "recovered"
)

// Incident is a detected condition for one job at one point in time. ID is
// assigned when the incident is dispatched. Which context fields are
// populated depends on Kind:
//
//   - KindMissed: ExpectedAt, OverdueBy, Threshold, Schedule
//   - KindFailed: BuildNumber, BuildStatus
//   - KindRecovered: RecoveredFrom
//
// LastBuildTime and JobURL are filled whenever they are known.
type Incident struct {
	ID         string       `json:"id"`
	JobID      string       `json:"job_id"`
	Kind       IncidentKind `json:"kind"`
	DetectedAt time.Time    `json:"detected_at"`

	Schedule      string        `json:"schedule,omitempty"`
	Threshold     time.Duration `json:"threshold,omitempty"`
	ExpectedAt    time.Time     `json:"expected_at,omitzero"`
	OverdueBy     time.Duration `json:"overdue_by,omitempty"`
	LastBuildTime time.Time     `json:"last_build_time,omitzero"`
	BuildNumber   int64         `json:"build_number,omitempty"`
	BuildStatus   Status        `json:"build_status,omitempty"`
	RecoveredFrom IncidentKind  `json:"recovered_from,omitempty"`
	JobURL        string        `json:"job_url,omitempty"`
}
