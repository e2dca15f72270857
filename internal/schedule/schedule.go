// Package schedule evaluates six-field cron expressions (seconds first) in UTC.
//
// Fields accept single values, ranges (a-b), steps (a-b/n, */n, a/n), comma
// separated unions and the "*" wildcard. Month is 1-12 and day-of-week is 0-6
// with 0 = Sunday; names are not accepted. When both day-of-month and
// day-of-week are restricted a day matches if either one does.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalid is returned when an expression cannot be parsed.
	ErrInvalid = errors.New("schedule: invalid expression")

	// ErrUnsatisfiable is returned when no matching instant exists inside
	// the search window.
	ErrUnsatisfiable = errors.New("schedule: unsatisfiable within search window")
)

// searchYears bounds how far MostRecentDue and NextAfter scan. Four years
// covers every leap day; the extra year absorbs century years like 2100.
const searchYears = 5

// Schedule is a parsed six-field cron expression. It is immutable and safe
// for concurrent use.
type Schedule struct {
	expr string

	second, minute, hour, dom, month, dow set

	domStar, dowStar bool
}

// Parse parses a six-field expression. Five-field expressions are rejected;
// normalizing them is the caller's job.
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 6 {
		return nil, fmt.Errorf("%w: expected 6 fields, got %d in %q", ErrInvalid, len(fields), expr)
	}

	s := &Schedule{expr: strings.Join(fields, " ")}

	var err error
	if s.second, _, err = parseField(fields[0], secondBounds); err != nil {
		return nil, err
	}
	if s.minute, _, err = parseField(fields[1], minuteBounds); err != nil {
		return nil, err
	}
	if s.hour, _, err = parseField(fields[2], hourBounds); err != nil {
		return nil, err
	}
	if s.dom, s.domStar, err = parseField(fields[3], domBounds); err != nil {
		return nil, err
	}
	if s.month, _, err = parseField(fields[4], monthBounds); err != nil {
		return nil, err
	}
	if s.dow, s.dowStar, err = parseField(fields[5], dowBounds); err != nil {
		return nil, err
	}
	return s, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level variables.
func MustParse(expr string) *Schedule {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the normalized expression.
func (s *Schedule) String() string {
	return s.expr
}

// Matches reports whether t, truncated to the second, is a scheduled instant.
func (s *Schedule) Matches(t time.Time) bool {
	t = t.UTC()
	return s.month.has(int(t.Month())) &&
		s.dayMatches(t) &&
		s.hour.has(t.Hour()) &&
		s.minute.has(t.Minute()) &&
		s.second.has(t.Second())
}

func (s *Schedule) dayMatches(t time.Time) bool {
	domOK := s.dom.has(t.Day())
	dowOK := s.dow.has(int(t.Weekday()))
	if s.domStar || s.dowStar {
		return domOK && dowOK
	}
	return domOK || dowOK
}
