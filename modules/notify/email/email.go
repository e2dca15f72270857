// Package email delivers incidents over SMTP.
package email

import (
	"context"
	"fmt"
	"sync"

	"github.com/flemzord/jobwatch/internal/alert"
	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/internal/security"
	"github.com/flemzord/jobwatch/pkg/jobs"
	mail "github.com/wneessen/go-mail"
	"gopkg.in/yaml.v3"
)

// ModuleID is the configuration key of the email sink.
const ModuleID core.ModuleID = "notify.email"

func init() {
	core.RegisterModule(&Email{})
}

// Compile-time interface guards.
var (
	_ alert.Sink        = (*Email)(nil)
	_ core.Configurable = (*Email)(nil)
	_ core.Provisioner  = (*Email)(nil)
	_ core.Validator    = (*Email)(nil)
	_ core.Reloader     = (*Email)(nil)
)

// Email sends one plain-text message per incident to every recipient.
type Email struct {
	mu     sync.RWMutex
	config Config
}

// ModuleInfo implements core.Module.
func (e *Email) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Email{} },
	}
}

// Configure implements core.Configurable.
func (e *Email) Configure(node *yaml.Node) error {
	var cfg Config
	if err := node.Decode(&cfg); err != nil {
		return fmt.Errorf("email: decode config: %w", err)
	}
	cfg.defaults()
	e.config = cfg
	return nil
}

// Provision implements core.Provisioner.
func (e *Email) Provision(ctx *core.AppContext) error {
	if r, ok := core.Service[*security.Redactor](ctx, "security.redactor"); ok {
		r.AddLiteral(e.config.Password)
	}
	return nil
}

// Validate implements core.Validator.
func (e *Email) Validate() error {
	return e.config.validate()
}

// Reload implements core.Reloader. The new configuration replaces the old
// one only if it is valid.
func (e *Email) Reload(ctx *core.AppContext) error {
	node, ok := ctx.ModuleConfig(ModuleID)
	if !ok {
		return nil
	}
	next := &Email{}
	if err := next.Configure(node); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if err := next.Provision(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.config = next.config
	e.mu.Unlock()
	return nil
}

// Send implements alert.Sink.
func (e *Email) Send(ctx context.Context, inc jobs.Incident) error {
	e.mu.RLock()
	cfg := e.config
	e.mu.RUnlock()

	msg, err := newMessage(cfg, inc)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email: sending to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return nil
}

func newMessage(cfg Config, inc jobs.Incident) (*mail.Msg, error) {
	subject, body := alert.Format(inc)

	msg := mail.NewMsg()
	if err := msg.From(cfg.From); err != nil {
		return nil, fmt.Errorf("email: from: %w", err)
	}
	if err := msg.To(cfg.To...); err != nil {
		return nil, fmt.Errorf("email: to: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	if inc.ID != "" {
		msg.SetGenHeader("X-Jobwatch-Incident", inc.ID)
	}
	return msg, nil
}

func newClient(cfg Config) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLS)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("email: client: %w", err)
	}
	return client, nil
}

func tlsPolicy(s string) mail.TLSPolicy {
	switch s {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}
