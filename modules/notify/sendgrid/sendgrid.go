// Package sendgrid delivers incidents through the SendGrid v3 mail API.
package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"

	"github.com/flemzord/jobwatch/internal/alert"
	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/internal/security"
	"github.com/flemzord/jobwatch/pkg/jobs"
	sg "github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/yaml.v3"
)

// ModuleID is the configuration key of the SendGrid sink.
const ModuleID core.ModuleID = "notify.sendgrid"

const defaultFromName = "jobwatch"

func init() {
	core.RegisterModule(&SendGrid{})
}

// Compile-time interface guards.
var (
	_ alert.Sink        = (*SendGrid)(nil)
	_ core.Configurable = (*SendGrid)(nil)
	_ core.Provisioner  = (*SendGrid)(nil)
	_ core.Validator    = (*SendGrid)(nil)
	_ core.Reloader     = (*SendGrid)(nil)
)

// Config holds the SendGrid sink configuration.
type Config struct {
	APIKey   string   `yaml:"api_key"`
	From     string   `yaml:"from"`
	FromName string   `yaml:"from_name,omitempty"`
	To       []string `yaml:"to"`

	// BaseURL overrides the API host, e.g. for the EU data residency endpoint.
	BaseURL string `yaml:"base_url,omitempty"`
}

func (c *Config) defaults() {
	if c.FromName == "" {
		c.FromName = defaultFromName
	}
}

// SendGrid sends one message per incident with all recipients in a single
// personalization.
type SendGrid struct {
	mu     sync.RWMutex
	config Config
}

// ModuleInfo implements core.Module.
func (s *SendGrid) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &SendGrid{} },
	}
}

// Configure implements core.Configurable.
func (s *SendGrid) Configure(node *yaml.Node) error {
	var cfg Config
	if err := node.Decode(&cfg); err != nil {
		return fmt.Errorf("sendgrid: decode config: %w", err)
	}
	cfg.defaults()
	s.config = cfg
	return nil
}

// Provision implements core.Provisioner.
func (s *SendGrid) Provision(ctx *core.AppContext) error {
	if r, ok := core.Service[*security.Redactor](ctx, "security.redactor"); ok {
		r.AddLiteral(s.config.APIKey)
	}
	return nil
}

// Validate implements core.Validator.
func (s *SendGrid) Validate() error {
	var errs []error
	if s.config.APIKey == "" {
		errs = append(errs, errors.New("sendgrid: api_key is required"))
	}
	if _, err := mail.ParseAddress(s.config.From); err != nil {
		errs = append(errs, fmt.Errorf("sendgrid: invalid from address %q: %w", s.config.From, err))
	}
	if len(s.config.To) == 0 {
		errs = append(errs, errors.New("sendgrid: at least one recipient is required"))
	}
	for _, to := range s.config.To {
		if _, err := mail.ParseAddress(to); err != nil {
			errs = append(errs, fmt.Errorf("sendgrid: invalid recipient %q: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

// Reload implements core.Reloader.
func (s *SendGrid) Reload(ctx *core.AppContext) error {
	node, ok := ctx.ModuleConfig(ModuleID)
	if !ok {
		return nil
	}
	next := &SendGrid{}
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
	s.mu.Unlock()
	return nil
}

// Send implements alert.Sink.
func (s *SendGrid) Send(ctx context.Context, inc jobs.Incident) error {
	s.mu.RLock()
	cfg := s.config
	s.mu.RUnlock()

	client := sg.NewSendClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL + "/v3/mail/send"
	}

	resp, err := client.SendWithContext(ctx, newMessage(cfg, inc))
	if err != nil {
		return fmt.Errorf("sendgrid: send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func newMessage(cfg Config, inc jobs.Incident) *sgmail.SGMailV3 {
	subject, body := alert.Format(inc)

	p := sgmail.NewPersonalization()
	for _, to := range cfg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(cfg.FromName, cfg.From))
	m.Subject = subject
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", body))
	if inc.ID != "" {
		m.SetHeader("X-Jobwatch-Incident", inc.ID)
	}
	return m
}
