// Package jobs defines the value types shared between the execution source,
// the conformance engine, and the notification sinks.
package jobs

import "strings"

// Status is the terminal status of a build as reported by the job server.
type Status string

// Known build statuses. Anything the server reports that is not listed here
// normalizes to StatusUnknown.
const (
	StatusSuccess  Status = "SUCCESS"
	StatusFailure  Status = "FAILURE"
	StatusUnstable Status = "UNSTABLE"
	StatusAborted  Status = "ABORTED"
	StatusUnknown  Status = "UNKNOWN"
)

// ParseStatus normalizes a raw result string. Matching is case-insensitive
// and ignores surrounding whitespace.
func ParseStatus(raw string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusSuccess:
		return StatusSuccess
	case StatusFailure:
		return StatusFailure
	case StatusUnstable:
		return StatusUnstable
	case StatusAborted:
		return StatusAborted
	default:
		return StatusUnknown
	}
}

// Failing reports whether s is a non-success terminal status.
func (s Status) Failing() bool {
	return s == StatusFailure || s == StatusUnstable || s == StatusAborted
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == "" {
		return string(StatusUnknown)
	}
	return string(s)
}
