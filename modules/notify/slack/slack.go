// Package slack posts incidents to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/flemzord/jobwatch/internal/alert"
	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/internal/security"
	"github.com/flemzord/jobwatch/pkg/jobs"
	"github.com/slack-go/slack"
	"gopkg.in/yaml.v3"
)

// ModuleID is the configuration key of the Slack sink.
const ModuleID core.ModuleID = "notify.slack"

const defaultTimeout = 10 * time.Second

func init() {
	core.RegisterModule(&Slack{})
}

// Compile-time interface guards.
var (
	_ alert.Sink        = (*Slack)(nil)
	_ core.Configurable = (*Slack)(nil)
	_ core.Provisioner  = (*Slack)(nil)
	_ core.Validator    = (*Slack)(nil)
	_ core.Reloader     = (*Slack)(nil)
)

// Config holds the Slack sink configuration.
type Config struct {
	WebhookURL string        `yaml:"webhook_url"`
	Channel    string        `yaml:"channel,omitempty"`
	Username   string        `yaml:"username,omitempty"`
	IconEmoji  string        `yaml:"icon_emoji,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

func (c *Config) defaults() {
	if c.Username == "" {
		c.Username = "jobwatch"
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// Slack renders each incident as a colored attachment.
type Slack struct {
	mu     sync.RWMutex
	config Config
	client *http.Client
}

// ModuleInfo implements core.Module.
func (s *Slack) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Slack{} },
	}
}

// Configure implements core.Configurable.
func (s *Slack) Configure(node *yaml.Node) error {
	var cfg Config
	if err := node.Decode(&cfg); err != nil {
		return fmt.Errorf("slack: decode config: %w", err)
	}
	cfg.defaults()
	s.config = cfg
	return nil
}

// Provision implements core.Provisioner.
func (s *Slack) Provision(ctx *core.AppContext) error {
	s.client = &http.Client{Timeout: s.config.Timeout}
	if r, ok := core.Service[*security.Redactor](ctx, "security.redactor"); ok {
		r.AddLiteral(s.config.WebhookURL)
	}
	return nil
}

// Validate implements core.Validator.
func (s *Slack) Validate() error {
	if s.config.WebhookURL == "" {
		return errors.New("slack: webhook_url is required")
	}
	u, err := url.Parse(s.config.WebhookURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("slack: webhook_url must be an http(s) URL")
	}
	return nil
}

// Reload implements core.Reloader.
func (s *Slack) Reload(ctx *core.AppContext) error {
	node, ok := ctx.ModuleConfig(ModuleID)
	if !ok {
		return nil
	}
	next := &Slack{}
	if err := next.Configure(node); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if err := next.Provision(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.config = next.config
	s.client = next.client
	s.mu.Unlock()
	return nil
}

// Send implements alert.Sink.
func (s *Slack) Send(ctx context.Context, inc jobs.Incident) error {
	s.mu.RLock()
	cfg, client := s.config, s.client
	s.mu.RUnlock()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	// The webhook URL is the credential; keep it out of the error.
	if err := slack.PostWebhookCustomHTTPContext(ctx, cfg.WebhookURL, client, newMessage(cfg, inc)); err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}

func newMessage(cfg Config, inc jobs.Incident) *slack.WebhookMessage {
	subject, body := alert.Format(inc)

	att := slack.Attachment{
		Color:    color(inc.Kind),
		Title:    subject,
		Text:     body,
		Fallback: subject,
		Ts:       jsonTime(inc.DetectedAt),
	}
	if inc.JobURL != "" {
		att.TitleLink = inc.JobURL
	}
	return &slack.WebhookMessage{
		Text:        subject,
		Channel:     cfg.Channel,
		Username:    cfg.Username,
		IconEmoji:   cfg.IconEmoji,
		Attachments: []slack.Attachment{att},
	}
}

func color(kind jobs.IncidentKind) string {
	switch kind {
	case jobs.KindRecovered:
		return "good"
	case jobs.KindMissed:
		return "warning"
	default:
		return "danger"
	}
}

func jsonTime(t time.Time) json.Number {
	if t.IsZero() {
		return ""
	}
	return json.Number(strconv.FormatInt(t.Unix(), 10))
}
