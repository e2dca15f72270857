package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// bounds is the inclusive domain of one cron field.
type bounds struct {
	name     string
	min, max uint
}

var (
	secondBounds = bounds{"second", 0, 59}
	minuteBounds = bounds{"minute", 0, 59}
	hourBounds   = bounds{"hour", 0, 23}
	domBounds    = bounds{"day-of-month", 1, 31}
	monthBounds  = bounds{"month", 1, 12}
	dowBounds    = bounds{"day-of-week", 0, 6}
)

// set is a bitmask of accepted values. Every domain fits in 64 bits.
type set uint64

func (s set) has(v int) bool {
	return v >= 0 && v < 64 && s&(1<<uint(v)) != 0
}

// parseField parses a comma-separated list of terms. The returned bool
// reports whether the field is unrestricted, i.e. it starts with "*".
func parseField(expr string, b bounds) (set, bool, error) {
	if expr == "" {
		return 0, false, fmt.Errorf("%w: empty %s field", ErrInvalid, b.name)
	}

	var s set
	for term := range strings.SplitSeq(expr, ",") {
		ts, err := parseTerm(term, b)
		if err != nil {
			return 0, false, err
		}
		s |= ts
	}
	return s, strings.HasPrefix(expr, "*"), nil
}

// parseTerm handles one of: "*", "*/n", "v", "a-b", "a-b/n", "a/n".
func parseTerm(term string, b bounds) (set, error) {
	rangePart, stepPart, hasStep := strings.Cut(term, "/")

	step := uint(1)
	if hasStep {
		n, err := parseNumber(stepPart, b)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, fmt.Errorf("%w: %s step must be positive in %q", ErrInvalid, b.name, term)
		}
		step = n
	}

	var lo, hi uint
	switch {
	case rangePart == "*":
		lo, hi = b.min, b.max
	case strings.Contains(rangePart, "-"):
		a, z, _ := strings.Cut(rangePart, "-")
		var err error
		if lo, err = parseNumber(a, b); err != nil {
			return 0, err
		}
		if hi, err = parseNumber(z, b); err != nil {
			return 0, err
		}
	default:
		n, err := parseNumber(rangePart, b)
		if err != nil {
			return 0, err
		}
		lo, hi = n, n
		if hasStep {
			hi = b.max
		}
	}

	if lo < b.min || hi > b.max {
		return 0, fmt.Errorf("%w: %s %q out of range [%d, %d]", ErrInvalid, b.name, term, b.min, b.max)
	}
	if lo > hi {
		return 0, fmt.Errorf("%w: %s range %q is reversed", ErrInvalid, b.name, term)
	}

	var s set
	for v := lo; v <= hi; v += step {
		s |= 1 << v
	}
	return s, nil
}

func parseNumber(raw string, b bounds) (uint, error) {
	n, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %s value %q is not a number", ErrInvalid, b.name, raw)
	}
	return uint(n), nil
}
