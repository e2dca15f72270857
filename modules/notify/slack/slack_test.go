package slack

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/internal/security"
	"github.com/flemzord/jobwatch/pkg/jobs"
	"github.com/slack-go/slack"
	"gopkg.in/yaml.v3"
)

func newWebhook(t *testing.T, status int) (*httptest.Server, func() []slack.WebhookMessage) {
	t.Helper()
	var (
		mu   sync.Mutex
		msgs []slack.WebhookMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m slack.WebhookMessage
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		msgs = append(msgs, m)
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []slack.WebhookMessage {
		mu.Lock()
		defer mu.Unlock()
		return append([]slack.WebhookMessage(nil), msgs...)
	}
}

func newSink(t *testing.T, webhook string) *Slack {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("webhook_url: "+webhook+"\nchannel: '#ops'\n"), &node); err != nil {
		t.Fatal(err)
	}
	s := &Slack{}
	if err := s.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if err := s.Provision(core.NewAppContext(nil)); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return s
}

func TestSend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind  jobs.IncidentKind
		color string
	}{
		{jobs.KindMissed, "warning"},
		{jobs.KindFailed, "danger"},
		{jobs.KindRecovered, "good"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()

			srv, received := newWebhook(t, http.StatusOK)
			s := newSink(t, srv.URL+"/services/T000/B000/XXXX")

			inc := jobs.Incident{
				JobID:         "etl",
				Kind:          tt.kind,
				DetectedAt:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
				RecoveredFrom: jobs.KindFailed,
				JobURL:        "https://ci.example.com/job/etl/",
			}
			if err := s.Send(t.Context(), inc); err != nil {
				t.Fatalf("Send() error = %v", err)
			}

			msgs := received()
			if len(msgs) != 1 {
				t.Fatalf("got %d messages, want 1", len(msgs))
			}
			m := msgs[0]
			if m.Channel != "#ops" || m.Username != "jobwatch" {
				t.Errorf("channel/username = %q/%q", m.Channel, m.Username)
			}
			if len(m.Attachments) != 1 {
				t.Fatalf("attachments = %d, want 1", len(m.Attachments))
			}
			att := m.Attachments[0]
			if att.Color != tt.color {
				t.Errorf("Color = %q, want %q", att.Color, tt.color)
			}
			if att.TitleLink != inc.JobURL {
				t.Errorf("TitleLink = %q", att.TitleLink)
			}
			if !strings.Contains(att.Text, "Job: etl") {
				t.Errorf("Text = %q", att.Text)
			}
		})
	}
}

func TestSendErrorHidesWebhook(t *testing.T) {
	t.Parallel()

	srv, _ := newWebhook(t, http.StatusForbidden)
	s := newSink(t, srv.URL+"/services/T000/B000/secret-token")

	err := s.Send(t.Context(), jobs.Incident{JobID: "etl", Kind: jobs.KindFailed})
	if err == nil {
		t.Fatal("Send() error = nil, want rejection")
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Errorf("error leaks webhook URL: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		{"empty", "", false},
		{"not a url", "hooks", false},
		{"ftp", "ftp://hooks.slack.com/x", false},
		{"https", "https://hooks.slack.com/services/T/B/X", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &Slack{config: Config{WebhookURL: tt.url}}
			if err := s.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestProvisionRegistersWebhook(t *testing.T) {
	t.Parallel()

	redactor := security.NewRedactor()
	ctx := core.NewAppContext(nil)
	ctx.RegisterService("security.redactor", redactor)

	s := &Slack{config: Config{WebhookURL: "https://example.com/hook/abc123"}}
	if err := s.Provision(ctx); err != nil {
		t.Fatal(err)
	}
	if got := redactor.Redact("posting to https://example.com/hook/abc123"); strings.Contains(got, "abc123") {
		t.Errorf("Redact() = %q", got)
	}
}
