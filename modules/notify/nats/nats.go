// Package nats publishes incidents as JSON events on a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/jobwatch/internal/alert"
	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/internal/security"
	"github.com/flemzord/jobwatch/pkg/jobs"
	"github.com/nats-io/nats.go"
	"gopkg.in/yaml.v3"
)

// ModuleID is the configuration key of the NATS sink.
const ModuleID core.ModuleID = "notify.nats"

const (
	defaultSubjectPrefix = "jobwatch.incidents"
	defaultFlushTimeout  = 5 * time.Second
)

// ErrNotConnected is returned by Send before Start or after Stop.
var ErrNotConnected = errors.New("nats: not connected")

func init() {
	core.RegisterModule(&NATS{})
}

// Compile-time interface guards.
var (
	_ alert.Sink        = (*NATS)(nil)
	_ core.Configurable = (*NATS)(nil)
	_ core.Provisioner  = (*NATS)(nil)
	_ core.Validator    = (*NATS)(nil)
	_ core.Starter      = (*NATS)(nil)
	_ core.Stopper      = (*NATS)(nil)
)

// Config holds the NATS sink configuration.
type Config struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix,omitempty"`
	ClientName    string        `yaml:"client_name,omitempty"`
	FlushTimeout  time.Duration `yaml:"flush_timeout,omitempty"`
}

func (c *Config) defaults() {
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = defaultSubjectPrefix
	}
	if c.ClientName == "" {
		c.ClientName = "jobwatch"
	}
	if c.FlushTimeout == 0 {
		c.FlushTimeout = defaultFlushTimeout
	}
}

// publisher is the subset of *nats.Conn the sink uses.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
	Close()
}

// NATS publishes each incident on "<prefix>.<kind>".
type NATS struct {
	config  Config
	logger  *slog.Logger
	connect func(cfg Config) (publisher, error)

	mu   sync.RWMutex
	conn publisher
}

// ModuleInfo implements core.Module.
func (n *NATS) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &NATS{} },
	}
}

// Configure implements core.Configurable.
func (n *NATS) Configure(node *yaml.Node) error {
	if err := node.Decode(&n.config); err != nil {
		return fmt.Errorf("nats: decode config: %w", err)
	}
	n.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (n *NATS) Provision(ctx *core.AppContext) error {
	n.logger = ctx.Logger
	if n.connect == nil {
		n.connect = dial
	}
	if r, ok := core.Service[*security.Redactor](ctx, "security.redactor"); ok {
		r.AddLiteral(n.config.URL)
	}
	return nil
}

// Validate implements core.Validator.
func (n *NATS) Validate() error {
	var errs []error
	if n.config.URL == "" {
		errs = append(errs, errors.New("nats: url is required"))
	} else {
		for _, raw := range strings.Split(n.config.URL, ",") {
			u, err := url.Parse(strings.TrimSpace(raw))
			if err != nil || u.Host == "" {
				errs = append(errs, fmt.Errorf("nats: invalid server url %q", raw))
			}
		}
	}
	if strings.ContainsAny(n.config.SubjectPrefix, " \t*>") || strings.HasSuffix(n.config.SubjectPrefix, ".") {
		errs = append(errs, fmt.Errorf("nats: invalid subject_prefix %q", n.config.SubjectPrefix))
	}
	return errors.Join(errs...)
}

// Start implements core.Starter.
func (n *NATS) Start() error {
	conn, err := n.connect(n.config)
	if err != nil {
		return fmt.Errorf("nats: connect: %w", err)
	}
	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()
	n.logger.Info("nats: connected", "subject_prefix", n.config.SubjectPrefix)
	return nil
}

// Stop implements core.Stopper. Pending publishes are drained before the
// connection closes.
func (n *NATS) Stop(_ context.Context) error {
	n.mu.Lock()
	conn := n.conn
	n.conn = nil
	n.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Drain()
	conn.Close()
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats: drain: %w", err)
	}
	return nil
}

// Subject returns the subject an incident of kind is published on.
func (n *NATS) Subject(kind jobs.IncidentKind) string {
	return n.config.SubjectPrefix + "." + string(kind)
}

// Send implements alert.Sink. It returns once the server has acknowledged
// the flush, so a broken connection surfaces as a delivery failure.
func (n *NATS) Send(ctx context.Context, inc jobs.Incident) error {
	n.mu.RLock()
	conn := n.conn
	n.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("nats: encode incident: %w", err)
	}
	subject := n.Subject(inc.Kind)
	if err := conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats: publish %s: %w", subject, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.config.FlushTimeout)
		defer cancel()
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats: flush: %w", err)
	}
	return nil
}

func dial(cfg Config) (publisher, error) {
	return nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(-1),
	)
}
