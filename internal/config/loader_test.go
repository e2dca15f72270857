package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sample = `
version: "1"
jenkins:
  url: ${JW_TEST_URL:-https://ci.example.com}
  username: bot
  api_token: ${JW_TEST_TOKEN}
monitor:
  suppression_window: 2h
  notify_recovery: false
jobs:
  - name: team/nightly-build
    schedule: "0 2 * * *"
    alert_threshold: 90m
  - name: ops/backup
    schedule: "0 0 3 * * *"
    enabled: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobwatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("JW_TEST_TOKEN", "s3cret")

	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Jenkins.URL != "https://ci.example.com" {
		t.Errorf("URL = %q", cfg.Jenkins.URL)
	}
	if cfg.Jenkins.APIToken != "s3cret" {
		t.Errorf("APIToken = %q", cfg.Jenkins.APIToken)
	}
	if cfg.Jenkins.Timeout != DefaultJenkinsTimeout {
		t.Errorf("Timeout = %v", cfg.Jenkins.Timeout)
	}
	if cfg.Monitor.SuppressionWindow != 2*time.Hour {
		t.Errorf("SuppressionWindow = %v", cfg.Monitor.SuppressionWindow)
	}
	if cfg.Monitor.RecoveryNotified() {
		t.Error("RecoveryNotified = true, want false")
	}
	if cfg.Monitor.Interval != DefaultInterval || cfg.Monitor.Workers != DefaultWorkers {
		t.Errorf("monitor defaults not applied: %+v", cfg.Monitor)
	}
	if cfg.Jobs[0].AlertThreshold != 90*time.Minute || cfg.Jobs[1].AlertThreshold != DefaultAlertThreshold {
		t.Errorf("thresholds = %v, %v", cfg.Jobs[0].AlertThreshold, cfg.Jobs[1].AlertThreshold)
	}
	if cfg.Jobs[1].IsEnabled() {
		t.Error("ops/backup enabled")
	}
	if got := cfg.Secrets(); len(got) != 1 || got[0] != "s3cret" {
		t.Errorf("Secrets = %v", got)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	_, err := Load(writeConfig(t, sample))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "JW_TEST_TOKEN") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("JW_SET", "value")
	t.Setenv("JW_EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"a: ${JW_SET}", "a: value"},
		{"a: ${JW_EMPTY:-fallback}", "a: "},
		{"a: ${JW_UNSET_X:-fallback}", "a: fallback"},
		{"a: ${JW_UNSET_X:-}", "a: "},
		{"a: plain", "a: plain"},
	}
	for _, tt := range tests {
		got, err := expandEnv([]byte(tt.in))
		if err != nil {
			t.Errorf("expandEnv(%q): %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	cfg, err := Parse([]byte("modules:\n  notify.slack: {}\n  gateway.http: {}\n  notify.email: {}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := Resolve(cfg)
	want := []string{"gateway.http", "notify.email", "notify.slack"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Resolve = %v, want %v", got, want)
	}

	notifiers := Notifiers(cfg)
	if strings.Join(notifiers, ",") != "notify.email,notify.slack" {
		t.Errorf("Notifiers = %v", notifiers)
	}
}

func TestNotifiers_None(t *testing.T) {
	cfg, err := Parse([]byte("modules:\n  gateway.http: {}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := Notifiers(cfg); len(got) != 0 {
		t.Errorf("Notifiers = %v, want none", got)
	}
}
