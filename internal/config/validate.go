package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/internal/monitor"
	"github.com/flemzord/jobwatch/internal/schedule"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid configuration")

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the structural validity of a Config. Every problem found
// is reported, joined into one error.
func Validate(cfg *Config) error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if cfg.Version == "" {
		invalid("version field is required")
	} else if cfg.Version != "1" {
		invalid("unsupported version %q (supported: \"1\")", cfg.Version)
	}

	if cfg.LogLevel != "" && !logLevels[cfg.LogLevel] {
		invalid("unknown log_level %q", cfg.LogLevel)
	}

	errs = append(errs, validateJenkins(cfg.Jenkins)...)
	errs = append(errs, validateMonitor(cfg.Monitor)...)
	errs = append(errs, validateJobs(cfg.Jobs)...)

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			invalid("unknown module %q", id)
		}
	}

	return errors.Join(errs...)
}

func validateJenkins(j JenkinsConfig) []error {
	var errs []error
	if j.URL == "" {
		errs = append(errs, fmt.Errorf("%w: jenkins.url is required", ErrInvalid))
	} else if u, err := url.Parse(j.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%w: jenkins.url %q is not an http(s) URL", ErrInvalid, j.URL))
	}
	if j.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: jenkins.timeout must not be negative", ErrInvalid))
	}
	return errs
}

func validateMonitor(m MonitorConfig) []error {
	var errs []error
	if m.Interval < 0 {
		errs = append(errs, fmt.Errorf("%w: monitor.interval must not be negative", ErrInvalid))
	}
	if m.SuppressionWindow < 0 {
		errs = append(errs, fmt.Errorf("%w: monitor.suppression_window must not be negative", ErrInvalid))
	}
	if m.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: monitor.workers must not be negative", ErrInvalid))
	}
	if m.UnavailableWarnAfter < 0 {
		errs = append(errs, fmt.Errorf("%w: monitor.unavailable_warn_after must not be negative", ErrInvalid))
	}
	if m.FirstCheck != "" && !monitor.FirstCheckPolicy(m.FirstCheck).Valid() {
		errs = append(errs, fmt.Errorf("%w: monitor.first_check %q (want %s, %s or %s)",
			ErrInvalid, m.FirstCheck, monitor.PolicyObservePeriod, monitor.PolicyImmediate, monitor.PolicyOneShot))
	}
	if m.ProbeSchedule != "" {
		if err := CheckCron(m.ProbeSchedule); err != nil {
			errs = append(errs, fmt.Errorf("monitor.probe_schedule: %w", err))
		}
	}
	return errs
}

func validateJobs(jobs []JobConfig) []error {
	if len(jobs) == 0 {
		return []error{fmt.Errorf("%w: at least one job must be configured", ErrInvalid)}
	}

	var errs []error
	seen := make(map[string]bool, len(jobs))
	for i, j := range jobs {
		if j.Name == "" {
			errs = append(errs, fmt.Errorf("%w: jobs[%d]: name is required", ErrInvalid, i))
		} else if seen[j.Name] {
			errs = append(errs, fmt.Errorf("%w: jobs[%d]: duplicate job %q", ErrInvalid, i, j.Name))
		}
		seen[j.Name] = true

		if j.Schedule == "" {
			errs = append(errs, fmt.Errorf("%w: jobs[%d]: schedule is required", ErrInvalid, i))
		} else if err := CheckCron(j.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d] %s: %w", i, j.Name, err))
		}
		if j.AlertThreshold < 0 {
			errs = append(errs, fmt.Errorf("%w: jobs[%d]: alert_threshold must not be negative", ErrInvalid, i))
		}
	}
	return errs
}

// CheckCron reports whether expr is a usable job schedule.
func CheckCron(expr string) error {
	norm, err := NormalizeCron(expr)
	if err != nil {
		return err
	}
	if _, err := schedule.Parse(norm); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
