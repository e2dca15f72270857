// Package config handles YAML configuration loading, environment variable
// expansion, defaults, and structural validation for jobwatch.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when a field is left empty.
const (
	DefaultJenkinsTimeout       = 30 * time.Second
	DefaultInterval             = 60 * time.Second
	DefaultSuppressionWindow    = time.Hour
	DefaultWorkers              = 8
	DefaultFirstCheck           = "observe_period"
	DefaultUnavailableWarnAfter = 5
	DefaultProbeSchedule        = "*/5 * * * *"
	DefaultAlertThreshold       = 60 * time.Minute
	DefaultLogLevel             = "info"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`

	Jenkins   JenkinsConfig   `yaml:"jenkins"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Jobs      []JobConfig     `yaml:"jobs"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "notify.slack").
	Modules map[string]yaml.Node `yaml:"modules,omitempty"`
}

// JenkinsConfig locates the execution source.
type JenkinsConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username,omitempty"`
	APIToken string `yaml:"api_token,omitempty"`

	// Timeout bounds every call to the server.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// MonitorConfig tunes the conformance engine.
type MonitorConfig struct {
	// Interval is the period of the tick driver.
	Interval time.Duration `yaml:"interval,omitempty"`

	// SuppressionWindow drops repeat alerts of the same kind for a job.
	SuppressionWindow time.Duration `yaml:"suppression_window,omitempty"`

	// Workers bounds concurrent job checks within a cycle.
	Workers int `yaml:"workers,omitempty"`

	// FirstCheck is observe_period, immediate or one_shot.
	FirstCheck string `yaml:"first_check,omitempty"`

	// UnavailableWarnAfter is the number of consecutive failed fetches
	// before a job's outage is logged as a warning.
	UnavailableWarnAfter int `yaml:"unavailable_warn_after,omitempty"`

	// NotifyRecovery forwards recovered incidents to the sinks. Defaults to true.
	NotifyRecovery *bool `yaml:"notify_recovery,omitempty"`

	// ProbeSchedule is the cron expression of the connectivity probe.
	ProbeSchedule string `yaml:"probe_schedule,omitempty"`
}

// RecoveryNotified reports whether recoveries are forwarded to sinks.
func (m MonitorConfig) RecoveryNotified() bool {
	return m.NotifyRecovery == nil || *m.NotifyRecovery
}

// JobConfig is one monitored job.
type JobConfig struct {
	// Name is the job id, slash-separated for jobs inside folders.
	Name string `yaml:"name"`

	// Schedule is a 5- or 6-field cron expression, or a descriptor such
	// as @daily.
	Schedule string `yaml:"schedule"`

	AlertThreshold time.Duration `yaml:"alert_threshold,omitempty"`
	Enabled        *bool         `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the job is checked. Defaults to true.
func (j JobConfig) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	// OTLPEndpoint is host:port of an OTLP/HTTP collector. Empty disables export.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty"`
}

// ApplyDefaults fills empty fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Jenkins.Timeout == 0 {
		c.Jenkins.Timeout = DefaultJenkinsTimeout
	}
	m := &c.Monitor
	if m.Interval == 0 {
		m.Interval = DefaultInterval
	}
	if m.SuppressionWindow == 0 {
		m.SuppressionWindow = DefaultSuppressionWindow
	}
	if m.Workers == 0 {
		m.Workers = DefaultWorkers
	}
	if m.FirstCheck == "" {
		m.FirstCheck = DefaultFirstCheck
	}
	if m.UnavailableWarnAfter == 0 {
		m.UnavailableWarnAfter = DefaultUnavailableWarnAfter
	}
	if m.ProbeSchedule == "" {
		m.ProbeSchedule = DefaultProbeSchedule
	}
	for i := range c.Jobs {
		if c.Jobs[i].AlertThreshold == 0 {
			c.Jobs[i].AlertThreshold = DefaultAlertThreshold
		}
	}
}

// Secrets returns the literal secret values found in the configuration,
// for log redaction.
func (c *Config) Secrets() []string {
	var out []string
	if c.Jenkins.APIToken != "" {
		out = append(out, c.Jenkins.APIToken)
	}
	return out
}
