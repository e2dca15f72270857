package monitor

import (
	"fmt"
	"time"

	"github.com/flemzord/jobwatch/internal/tracking"
	"github.com/flemzord/jobwatch/pkg/jobs"
)

// FirstCheckPolicy controls when a newly observed job is first judged
// against its schedule.
type FirstCheckPolicy string

const (
	// PolicyObservePeriod judges only due instants that fall at or after
	// the job's first observation, so a job is watched for one full period
	// before it can be reported missed.
	PolicyObservePeriod FirstCheckPolicy = "observe_period"

	// PolicyImmediate seeds on the first check, unless the job has never
	// built and is already past due plus threshold, and judges every due
	// instant from the second check on.
	PolicyImmediate FirstCheckPolicy = "immediate"

	// PolicyOneShot judges every check, the first included. Used when each
	// run starts from an empty store and sees a job exactly once.
	PolicyOneShot FirstCheckPolicy = "one_shot"
)

// Valid reports whether p is a known policy.
func (p FirstCheckPolicy) Valid() bool {
	switch p {
	case PolicyObservePeriod, PolicyImmediate, PolicyOneShot:
		return true
	}
	return false
}

// Decision is the outcome of one check of one job.
type Decision struct {
	// Record is the tracking record to store once the check completes.
	Record tracking.Record

	// Incident is nil when nothing is alert-worthy. ID and JobURL are left
	// for the caller to fill.
	Incident *jobs.Incident

	Due       time.Time
	Compliant bool
	Judged    bool
	OverdueBy time.Duration
}

// Decide applies the conformance rules to one job. It is a pure function of
// its arguments: rec is not modified and the returned Decision carries the
// record to store.
//
// At most one incident is produced. Failed takes precedence over Missed,
// which takes precedence over Recovered.
func Decide(job Job, rec tracking.Record, exec jobs.Execution, now time.Time, policy FirstCheckPolicy) (Decision, error) {
	now = now.UTC()
	first := !rec.Seeded()

	next := rec
	next.JobID = job.ID
	next.LastCheckedAt = now
	if first {
		next.FirstSeenAt = now
	}

	newFailure := exec.LastBuildStatus.Failing() && !failureRecorded(rec, exec)

	if exec.HasBuild() {
		next.LastBuildNumber = exec.LastBuildNumber
		next.LastBuildStatus = exec.LastBuildStatus
		if exec.LastBuildTime.After(next.LastBuildTime) {
			next.LastBuildTime = exec.LastBuildTime.UTC()
		}
	}

	due, err := job.Schedule.MostRecentDue(now)
	if err != nil {
		return Decision{}, fmt.Errorf("monitor: job %s: %w", job.ID, err)
	}

	d := Decision{
		Due:       due,
		Compliant: !next.LastBuildTime.IsZero() && !next.LastBuildTime.Before(due),
	}
	d.Judged = judged(policy, first, next, due, now, job.Threshold)

	if d.Compliant {
		next.ConsecutiveMisses = 0
		next.LastMissedDue = time.Time{}
	} else {
		d.OverdueBy = now.Sub(due)
		if d.Judged && !next.LastMissedDue.Equal(due) {
			next.ConsecutiveMisses++
			next.LastMissedDue = due
		}
	}

	status := next.LastBuildStatus
	switch {
	case newFailure:
		d.Incident = failedIncident(job, exec, now)
		next.State = tracking.StateFailed

	case d.Judged && !d.Compliant && d.OverdueBy > job.Threshold:
		d.Incident = missedIncident(job, next, due, d.OverdueBy, now)
		next.State = tracking.StateMissed

	case d.Compliant && healthy(rec.State, status):
		if rec.State == tracking.StateMissed || rec.State == tracking.StateFailed {
			d.Incident = recoveredIncident(job, next, rec.State, now)
		}
		next.State = tracking.StateOK
	}

	d.Record = next
	return d, nil
}

// failureRecorded reports whether rec already reflects exec's failing build.
func failureRecorded(rec tracking.Record, exec jobs.Execution) bool {
	return rec.LastBuildStatus.Failing() &&
		rec.LastBuildNumber == exec.LastBuildNumber &&
		rec.LastBuildTime.Equal(exec.LastBuildTime)
}

// healthy reports whether the latest status ends the prior state. A failed
// job needs a successful build; a missed or unjudged job only needs a build
// that is not failing, even one still in progress.
func healthy(prior tracking.State, status jobs.Status) bool {
	if status.Failing() {
		return false
	}
	if prior == tracking.StateFailed {
		return status == jobs.StatusSuccess
	}
	return true
}

func judged(policy FirstCheckPolicy, first bool, rec tracking.Record, due, now time.Time, threshold time.Duration) bool {
	switch policy {
	case PolicyOneShot:
		return true
	case PolicyImmediate:
		if first {
			return rec.LastBuildTime.IsZero() && now.Sub(due) > threshold
		}
		return true
	}
	return !first && !due.Before(rec.FirstSeenAt)
}

func missedIncident(job Job, rec tracking.Record, due time.Time, overdue time.Duration, now time.Time) *jobs.Incident {
	return &jobs.Incident{
		JobID:         job.ID,
		Kind:          jobs.KindMissed,
		DetectedAt:    now,
		Schedule:      job.Cron,
		Threshold:     job.Threshold,
		ExpectedAt:    due,
		OverdueBy:     overdue,
		LastBuildTime: rec.LastBuildTime,
		BuildNumber:   rec.LastBuildNumber,
		BuildStatus:   rec.LastBuildStatus,
	}
}

func failedIncident(job Job, exec jobs.Execution, now time.Time) *jobs.Incident {
	return &jobs.Incident{
		JobID:         job.ID,
		Kind:          jobs.KindFailed,
		DetectedAt:    now,
		Schedule:      job.Cron,
		Threshold:     job.Threshold,
		LastBuildTime: exec.LastBuildTime.UTC(),
		BuildNumber:   exec.LastBuildNumber,
		BuildStatus:   exec.LastBuildStatus,
	}
}

func recoveredIncident(job Job, rec tracking.Record, prior tracking.State, now time.Time) *jobs.Incident {
	from := jobs.KindMissed
	if prior == tracking.StateFailed {
		from = jobs.KindFailed
	}
	return &jobs.Incident{
		JobID:         job.ID,
		Kind:          jobs.KindRecovered,
		DetectedAt:    now,
		Schedule:      job.Cron,
		LastBuildTime: rec.LastBuildTime,
		BuildNumber:   rec.LastBuildNumber,
		BuildStatus:   rec.LastBuildStatus,
		RecoveredFrom: from,
	}
}
