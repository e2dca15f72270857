package jobs

import "time"

// Execution is what the execution source reports about a job's most recent
// build at the moment it was asked. A zero LastBuildTime means the job has
// never run; a zero LastBuildNumber means the server did not report one.
type Execution struct {
	ObservedAt      time.Time `json:"observed_at"`
	LastBuildTime   time.Time `json:"last_build_time,omitzero"`
	LastBuildStatus Status    `json:"last_build_status"`
	LastBuildNumber int64     `json:"last_build_number,omitempty"`

	// Building is set while the last build has started but not finished.
	Building bool `json:"building,omitempty"`
}

// HasBuild reports whether the job has ever produced a build.
func (e Execution) HasBuild() bool {
	return !e.LastBuildTime.IsZero()
}
