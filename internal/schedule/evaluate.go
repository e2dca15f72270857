package schedule

import (
	"fmt"
	"time"
)

// MostRecentDue returns the latest instant at or before now, at second
// granularity, that matches the schedule. It returns ErrUnsatisfiable if no
// such instant exists within the search window.
func (s *Schedule) MostRecentDue(now time.Time) (time.Time, error) {
	t := now.UTC().Truncate(time.Second)
	limit := t.AddDate(-searchYears, 0, 0)

	for !t.Before(limit) {
		y, mo, d := t.Date()

		if !s.month.has(int(mo)) {
			t = time.Date(y, mo, 1, 0, 0, 0, 0, time.UTC).Add(-time.Second)
			continue
		}
		if !s.dayMatches(t) {
			t = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC).Add(-time.Second)
			continue
		}
		if !s.hour.has(t.Hour()) {
			t = time.Date(y, mo, d, t.Hour(), 0, 0, 0, time.UTC).Add(-time.Second)
			continue
		}
		if !s.minute.has(t.Minute()) {
			t = time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, time.UTC).Add(-time.Second)
			continue
		}
		if !s.second.has(t.Second()) {
			t = t.Add(-time.Second)
			continue
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q has no match in the %d years before %s",
		ErrUnsatisfiable, s.expr, searchYears, now.UTC().Format(time.RFC3339))
}

// NextAfter returns the earliest matching instant strictly after t.
func (s *Schedule) NextAfter(after time.Time) (time.Time, error) {
	t := after.UTC().Truncate(time.Second).Add(time.Second)
	limit := t.AddDate(searchYears, 0, 0)

	for !t.After(limit) {
		y, mo, d := t.Date()

		if !s.month.has(int(mo)) {
			t = time.Date(y, mo+1, 1, 0, 0, 0, 0, time.UTC)
			continue
		}
		if !s.dayMatches(t) {
			t = time.Date(y, mo, d+1, 0, 0, 0, 0, time.UTC)
			continue
		}
		if !s.hour.has(t.Hour()) {
			t = time.Date(y, mo, d, t.Hour()+1, 0, 0, 0, time.UTC)
			continue
		}
		if !s.minute.has(t.Minute()) {
			t = time.Date(y, mo, d, t.Hour(), t.Minute()+1, 0, 0, time.UTC)
			continue
		}
		if !s.second.has(t.Second()) {
			t = t.Add(time.Second)
			continue
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q has no match in the %d years after %s",
		ErrUnsatisfiable, s.expr, searchYears, after.UTC().Format(time.RFC3339))
}

// Upcoming returns up to n consecutive matching instants after t.
func (s *Schedule) Upcoming(after time.Time, n int) ([]time.Time, error) {
	out := make([]time.Time, 0, n)
	for range n {
		next, err := s.NextAfter(after)
		if err != nil {
			return out, err
		}
		out = append(out, next)
		after = next
	}
	return out, nil
}
