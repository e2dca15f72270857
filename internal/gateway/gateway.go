// Package gateway serves the monitor over HTTP: health, Prometheus metrics,
// a JSON API over jobs and their tracking state, an incident feed over
// WebSocket, an MCP endpoint and inbound Jenkins webhooks. It binds to
// loopback by default and follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/jobwatch/internal/alert"
	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/internal/monitor"
	"github.com/flemzord/jobwatch/internal/reload"
	"github.com/flemzord/jobwatch/internal/security"
	"github.com/flemzord/jobwatch/internal/tracking"
	"github.com/flemzord/jobwatch/pkg/jobs"
	"gopkg.in/yaml.v3"
)

// ModuleID is the configuration key of the gateway.
const ModuleID core.ModuleID = "gateway.http"

// Service names the gateway resolves at Start.
const (
	ServiceMonitor = "monitor.engine"
	ServiceMetrics = "telemetry.metrics"
	ServiceReload  = "reload.handler"
	ServiceProbe   = "monitor.probe"
	ServiceVersion = "app.version"
	ServiceSinks   = "alert.sinks"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
	_ alert.Sink        = (*Gateway)(nil)
)

// Monitor is the view of the conformance engine the gateway serves.
// Implemented by *monitor.Engine.
type Monitor interface {
	Jobs() []monitor.Job
	Job(id string) (monitor.Job, bool)
	Store() *tracking.Store
	Disabled() map[string]error
	Outages() []monitor.Outage
	CheckNow(ctx context.Context, id string) (monitor.Result, error)
	Now() time.Time
}

// MetricsHandler exposes collected metrics. Implemented by *telemetry.Metrics.
type MetricsHandler interface {
	Handler() http.Handler
}

// ConfigReloader re-reads the configuration file. Implemented by *reload.Handler.
type ConfigReloader interface {
	ConfigPath() string
	Reload(ctx context.Context) (reload.Result, error)
}

// SinkRouter delivers incidents to named sinks. Implemented by *alert.Router.
type SinkRouter interface {
	Names() []string
	SendTo(ctx context.Context, name string, inc jobs.Incident) error
}

// ProbeStatus reports the last reachability probe of the job server.
// Implemented by *cron.ProbeJob.
type ProbeStatus interface {
	Status() (up, known bool)
}

// Gateway is the HTTP gateway module. It is also an alert sink: every
// incident delivered to it is pushed to connected feed subscribers.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	feed      *Feed
	webhooks  *WebhookDispatcher
	redactor  *security.Redactor
	startedAt time.Time
	version   string

	// Resolved lazily at Start() via service registry.
	monitor  Monitor
	metrics  MetricsHandler
	reloader ConfigReloader
	probe    ProbeStatus
	sinks    SinkRouter
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	if g.config.Bind == "" {
		g.config.defaults()
	}
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.feed = NewFeed(g.logger, g.config.FeedBuffer)
	g.webhooks = NewWebhookDispatcher(g.logger)

	ctx.RegisterService("gateway.feed", g.feed)
	ctx.RegisterService("gateway.webhook_dispatcher", g.webhooks)

	if r, ok := core.Service[*security.Redactor](ctx, "security.redactor"); ok {
		g.redactor = r
		r.AddLiteral(g.config.Auth.BearerToken)
		r.AddLiteral(g.config.Auth.BasicPass)
		for _, src := range g.config.Webhooks {
			r.AddLiteral(src.Secret)
		}
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if (g.config.Auth.BasicUser == "") != (g.config.Auth.BasicPass == "") {
		return errors.New("gateway: basic_user and basic_pass must be set together")
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = time.Now()

	if g.monitor != nil {
		g.webhooks.Register("jenkins", &jenkinsWebhook{monitor: g.monitor, logger: g.logger}, g.config.Webhooks["jenkins"].Secret)
	}

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolveServices binds optional collaborators. Missing services degrade
// the matching endpoints to 503.
func (g *Gateway) resolveServices() {
	if m, ok := core.Service[Monitor](g.appCtx, ServiceMonitor); ok {
		g.monitor = m
	}
	if m, ok := core.Service[MetricsHandler](g.appCtx, ServiceMetrics); ok {
		g.metrics = m
	}
	if r, ok := core.Service[ConfigReloader](g.appCtx, ServiceReload); ok {
		g.reloader = r
	}
	if p, ok := core.Service[ProbeStatus](g.appCtx, ServiceProbe); ok {
		g.probe = p
	}
	if s, ok := core.Service[SinkRouter](g.appCtx, ServiceSinks); ok {
		g.sinks = s
	}
	if v, ok := core.Service[string](g.appCtx, ServiceVersion); ok {
		g.version = v
	}
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.feed != nil {
		g.feed.Close()
	}
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Send implements alert.Sink by publishing inc to feed subscribers.
func (g *Gateway) Send(_ context.Context, inc jobs.Incident) error {
	if g.feed == nil {
		return nil
	}
	g.feed.Publish(inc)
	return nil
}
