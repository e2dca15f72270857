package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}

func TestMostRecentDue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
		now  string
		want string
	}{
		{"daily, after today's run", "0 0 2 * * *", "2025-01-02T03:45:00Z", "2025-01-02T02:00:00Z"},
		{"daily, before today's run", "0 0 2 * * *", "2025-01-02T01:59:59Z", "2025-01-01T02:00:00Z"},
		{"exactly at due", "0 0 2 * * *", "2025-01-02T02:00:00Z", "2025-01-02T02:00:00Z"},
		{"hourly", "0 0 * * * *", "2025-03-01T10:34:00Z", "2025-03-01T10:00:00Z"},
		{"sub-second now truncates", "* * * * * *", "2025-03-01T10:34:12.75Z", "2025-03-01T10:34:12Z"},
		{"every 15 seconds", "*/15 * * * * *", "2025-03-01T10:34:44Z", "2025-03-01T10:34:30Z"},
		{"across year boundary", "0 30 23 31 12 *", "2025-01-01T00:10:00Z", "2024-12-31T23:30:00Z"},
		{"weekdays only, on a Sunday", "0 0 9 * * 1-5", "2025-01-05T12:00:00Z", "2025-01-03T09:00:00Z"},
		{"leap day", "0 0 0 29 2 *", "2027-06-01T00:00:00Z", "2024-02-29T00:00:00Z"},
		{"day-of-month or day-of-week", "0 0 0 13 * 5", "2025-01-12T00:00:00Z", "2025-01-10T00:00:00Z"},
		{"last day of 31-day months", "0 0 0 31 * *", "2025-05-15T00:00:00Z", "2025-03-31T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := MustParse(tt.expr)
			got, err := s.MostRecentDue(mustTime(t, tt.now))
			if err != nil {
				t.Fatalf("MostRecentDue: %v", err)
			}
			if want := mustTime(t, tt.want); !got.Equal(want) {
				t.Errorf("MostRecentDue(%s) = %s, want %s", tt.now, got.Format(time.RFC3339), tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("result location = %s, want UTC", got.Location())
			}
		})
	}
}

func TestMostRecentDue_Unsatisfiable(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{
		"0 0 0 30 2 *",
		"0 0 0 31 4,6,9,11 *",
	} {
		s := MustParse(expr)
		_, err := s.MostRecentDue(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		if !errors.Is(err, ErrUnsatisfiable) {
			t.Errorf("%q: error = %v, want ErrUnsatisfiable", expr, err)
		}
		_, err = s.NextAfter(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		if !errors.Is(err, ErrUnsatisfiable) {
			t.Errorf("%q: NextAfter error = %v, want ErrUnsatisfiable", expr, err)
		}
	}
}

func TestNextAfter(t *testing.T) {
	t.Parallel()

	s := MustParse("0 0 2 * * *")
	got, err := s.NextAfter(mustTime(t, "2025-01-02T02:00:00Z"))
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	if want := mustTime(t, "2025-01-03T02:00:00Z"); !got.Equal(want) {
		t.Errorf("NextAfter = %s, want %s", got, want)
	}
}

func TestUpcoming(t *testing.T) {
	t.Parallel()

	s := MustParse("0 0 */6 * * *")
	got, err := s.Upcoming(mustTime(t, "2025-01-01T05:00:00Z"), 3)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	want := []string{"2025-01-01T06:00:00Z", "2025-01-01T12:00:00Z", "2025-01-01T18:00:00Z"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(mustTime(t, want[i])) {
			t.Errorf("[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

// propertyExprs covers steps, ranges, unions, and both day-field combinations.
var propertyExprs = []string{
	"* * * * * *",
	"0 0 2 * * *",
	"0 0 * * * *",
	"*/7 */13 * * * *",
	"30 15 10-14 * * 1-5",
	"0 0 0 1,15 * *",
	"0 0 12 13 * 5",
	"0 0 0 * * 0",
	"0 0 0 29 2 *",
	"0 45 23 * 3,6,9,12 *",
	"5/20 10-40/15 3 * * *",
	"0 0 0 31 * *",
}

// propertyTimes spans month ends, leap years and odd seconds.
var propertyTimes = []string{
	"2024-02-29T12:00:00Z",
	"2024-12-31T23:59:59Z",
	"2025-01-01T00:00:00Z",
	"2025-03-01T10:34:00Z",
	"2025-07-15T06:07:08Z",
	"2026-11-30T23:00:01Z",
}

// Every due instant is at or before now, matches the schedule, and no
// matching instant lies strictly between it and now.
func TestMostRecentDue_Properties(t *testing.T) {
	t.Parallel()

	for _, expr := range propertyExprs {
		s := MustParse(expr)
		for _, raw := range propertyTimes {
			now := mustTime(t, raw)

			due, err := s.MostRecentDue(now)
			if err != nil {
				t.Fatalf("%q at %s: %v", expr, raw, err)
			}
			if due.After(now) {
				t.Errorf("%q at %s: due %s is after now", expr, raw, due)
			}
			if !s.Matches(due) {
				t.Errorf("%q at %s: due %s does not match", expr, raw, due)
			}

			next, err := s.NextAfter(due)
			if err != nil {
				t.Fatalf("%q after %s: %v", expr, due, err)
			}
			if !next.After(now) {
				t.Errorf("%q at %s: %s matches between due %s and now", expr, raw, next, due)
			}
		}
	}
}

// NextAfter agrees with robfig/cron's six-field parser.
func TestNextAfter_MatchesRobfig(t *testing.T) {
	t.Parallel()

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	for _, expr := range propertyExprs {
		ours := MustParse(expr)
		theirs, err := parser.Parse(expr)
		if err != nil {
			t.Fatalf("robfig parse %q: %v", expr, err)
		}

		for _, raw := range propertyTimes {
			from := mustTime(t, raw)
			got, err := ours.NextAfter(from)
			if err != nil {
				t.Fatalf("%q after %s: %v", expr, raw, err)
			}
			if want := theirs.Next(from); !got.Equal(want) {
				t.Errorf("%q after %s: got %s, robfig %s", expr, raw, got, want)
			}
		}
	}
}
