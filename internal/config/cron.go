package config

import (
	"fmt"
	"strings"
)

// descriptors maps the usual cron shorthands to six-field expressions.
var descriptors = map[string]string{
	"@yearly":   "0 0 0 1 1 *",
	"@annually": "0 0 0 1 1 *",
	"@monthly":  "0 0 0 1 * *",
	"@weekly":   "0 0 0 * * 0",
	"@daily":    "0 0 0 * * *",
	"@midnight": "0 0 0 * * *",
	"@hourly":   "0 0 * * * *",
}

// NormalizeCron returns expr in six-field form (seconds first). A
// five-field expression gets a zero seconds field prepended.
func NormalizeCron(expr string) (string, error) {
	trimmed := strings.TrimSpace(expr)
	if d, ok := descriptors[strings.ToLower(trimmed)]; ok {
		return d, nil
	}

	fields := strings.Fields(trimmed)
	switch len(fields) {
	case 5:
		return "0 " + strings.Join(fields, " "), nil
	case 6:
		return strings.Join(fields, " "), nil
	default:
		return "", fmt.Errorf("%w: cron expression %q has %d fields, want 5 or 6", ErrInvalid, expr, len(fields))
	}
}
