package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/jobwatch/internal/core"
	"gopkg.in/yaml.v3"
)

// stubModule is a basic module for testing.
type stubModule struct {
	id string
}

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &stubModule{id: m.id} },
	}
}

func registerStub(t *testing.T, id string) {
	t.Helper()
	core.RegisterModule(&stubModule{id: id})
}

// valid returns a minimal configuration that passes Validate.
func valid() *Config {
	cfg := &Config{
		Version: "1",
		Jenkins: JenkinsConfig{URL: "https://jenkins.example.com"},
		Jobs: []JobConfig{
			{Name: "team/nightly-build", Schedule: "0 2 * * *", AlertThreshold: 90 * time.Minute},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	id := t.Name() + ".mod"
	registerStub(t, id)
	cfg := valid()
	cfg.Modules = map[string]yaml.Node{id: {}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing version", func(c *Config) { c.Version = "" }, "version"},
		{"unsupported version", func(c *Config) { c.Version = "99" }, "unsupported"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
		{"missing url", func(c *Config) { c.Jenkins.URL = "" }, "jenkins.url is required"},
		{"relative url", func(c *Config) { c.Jenkins.URL = "jenkins.local" }, "not an http(s) URL"},
		{"negative timeout", func(c *Config) { c.Jenkins.Timeout = -time.Second }, "jenkins.timeout"},
		{"negative window", func(c *Config) { c.Monitor.SuppressionWindow = -time.Minute }, "suppression_window"},
		{"bad policy", func(c *Config) { c.Monitor.FirstCheck = "eventually" }, "first_check"},
		{"bad probe", func(c *Config) { c.Monitor.ProbeSchedule = "* *" }, "probe_schedule"},
		{"no jobs", func(c *Config) { c.Jobs = nil }, "at least one job"},
		{"empty name", func(c *Config) { c.Jobs[0].Name = "" }, "name is required"},
		{"duplicate", func(c *Config) { c.Jobs = append(c.Jobs, c.Jobs[0]) }, "duplicate job"},
		{"missing schedule", func(c *Config) { c.Jobs[0].Schedule = "" }, "schedule is required"},
		{"malformed cron", func(c *Config) { c.Jobs[0].Schedule = "61 * * * *" }, "team/nightly-build"},
		{"negative threshold", func(c *Config) { c.Jobs[0].AlertThreshold = -time.Minute }, "alert_threshold"},
		{"unknown module", func(c *Config) { c.Modules = map[string]yaml.Node{"unknown.mod": {}} }, "unknown.mod"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error does not wrap ErrInvalid: %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		Modules: map[string]yaml.Node{
			"bad.one": {},
			"bad.two": {},
		},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"version", "jenkins.url", "at least one job", "bad.one", "bad.two"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q: %v", want, err)
		}
	}
}

func TestNormalizeCron(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0 * * * *", want: "0 0 * * * *"},
		{in: "  0 2 * * 1-5 ", want: "0 0 2 * * 1-5"},
		{in: "30 0 2 * * *", want: "30 0 2 * * *"},
		{in: "@daily", want: "0 0 0 * * *"},
		{in: "@Hourly", want: "0 0 * * * *"},
		{in: "* * * *", wantErr: true},
		{in: "0 0 0 1 1 * 2025", wantErr: true},
		{in: "", wantErr: true},
		{in: "@reboot", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeCron(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("err = %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildJobs(t *testing.T) {
	off := false
	cfg := valid()
	cfg.Jobs = append(cfg.Jobs, JobConfig{Name: "ops/backup", Schedule: "@weekly", Enabled: &off})
	cfg.ApplyDefaults()

	jobs, err := cfg.BuildJobs()
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].Cron != "0 0 2 * * *" || jobs[0].Threshold != 90*time.Minute || !jobs[0].Enabled {
		t.Errorf("jobs[0] = %+v", jobs[0].Spec)
	}
	if jobs[1].Threshold != DefaultAlertThreshold || jobs[1].Enabled {
		t.Errorf("jobs[1] = %+v", jobs[1].Spec)
	}
}
