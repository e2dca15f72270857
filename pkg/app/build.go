package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/flemzord/jobwatch/internal/alert"
	"github.com/flemzord/jobwatch/internal/config"
	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/internal/cron"
	"github.com/flemzord/jobwatch/internal/jenkins"
	"github.com/flemzord/jobwatch/internal/monitor"
	"github.com/flemzord/jobwatch/internal/reload"
	"github.com/flemzord/jobwatch/internal/security"
	"github.com/flemzord/jobwatch/internal/telemetry"
)

// Service names registered on the application context.
const (
	ServiceRedactor = "security.redactor"
	ServiceEngine   = "monitor.engine"
	ServiceProbe    = "monitor.probe"
	ServiceMetrics  = "telemetry.metrics"
	ServiceReload   = "reload.handler"
	ServiceConfig   = "config.path"
	ServiceVersion  = "app.version"
	ServiceSinks    = "alert.sinks"
)

// Options tunes Build.
type Options struct {
	// ConfigPath is recorded for reloads. It may be empty for one-shot use.
	ConfigPath string
	Version    string

	// LogLevel overrides the configured level when non-empty.
	LogLevel string

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer

	// FirstCheck overrides the configured first-check policy when non-empty.
	FirstCheck monitor.FirstCheckPolicy

	// NoModules skips the configured modules; incidents are only logged.
	NoModules bool

	// NoScheduler leaves out the tick driver, for callers that run cycles
	// themselves.
	NoScheduler bool
}

// Instance is a fully wired monitor, ready to Start.
type Instance struct {
	Config   *config.Config
	Logger   *slog.Logger
	Redactor *security.Redactor
	App      *core.App
	Context  *core.AppContext
	Engine   *monitor.Engine
	Jenkins  *jenkins.Client
	Sinks    *alert.Router
	Metrics  *telemetry.Metrics
	Tracing  *telemetry.Tracing
	Probe    *cron.ProbeJob
	Reload   *reload.Handler
}

// Build wires every component from a validated configuration: logger,
// telemetry, Jenkins client, configured modules, alert routing, the
// conformance engine and its schedule. Nothing runs until App.Start.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Instance, error) {
	redactor := security.NewRedactor()
	for _, s := range cfg.Secrets() {
		redactor.AddLiteral(s)
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := newLogger(opts.LogOutput, level, redactor)
	if err != nil {
		return nil, err
	}

	tracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceVersion: opts.Version,
	})
	if err != nil {
		return nil, err
	}
	metrics := telemetry.NewMetrics()

	client, err := jenkins.New(jenkins.Config{
		URL:      cfg.Jenkins.URL,
		Username: cfg.Jenkins.Username,
		APIToken: cfg.Jenkins.APIToken,
		Timeout:  cfg.Jenkins.Timeout,
	})
	if err != nil {
		return nil, err
	}

	policy := monitor.FirstCheckPolicy(cfg.Monitor.FirstCheck)
	if opts.FirstCheck != "" {
		policy = opts.FirstCheck
	}

	jobList, err := cfg.BuildJobs()
	if err != nil {
		return nil, err
	}

	appCtx := core.NewAppContext(logger).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(ServiceRedactor, redactor)
	appCtx.RegisterService(ServiceMetrics, metrics)
	appCtx.RegisterService(ServiceVersion, opts.Version)
	if opts.ConfigPath != "" {
		appCtx.RegisterService(ServiceConfig, opts.ConfigPath)
	}

	application := core.NewApp(appCtx)
	if !opts.NoModules {
		if err := application.LoadModules(config.Resolve(cfg)); err != nil {
			return nil, errors.Join(err, tracing.Shutdown(context.Background()))
		}
	}

	sinks := alert.NewRouter(logger)
	if err := wireSinks(application, sinks, logger); err != nil {
		return nil, errors.Join(err, shutdown(application, tracing))
	}

	dispatcher := alert.NewDispatcher(sinks, alert.DispatcherConfig{
		Window:         cfg.Monitor.SuppressionWindow,
		NotifyRecovery: cfg.Monitor.RecoveryNotified(),
		Observer:       metrics,
		Logger:         logger,
	})

	engine, err := monitor.NewEngine(monitor.Config{
		Source:               client,
		Dispatcher:           dispatcher,
		Jobs:                 jobList,
		Policy:               policy,
		SourceTimeout:        cfg.Jenkins.Timeout,
		Workers:              cfg.Monitor.Workers,
		UnavailableWarnAfter: cfg.Monitor.UnavailableWarnAfter,
		JobURL:               func(id string) string { return jenkins.JobURL(client.BaseURL(), id) },
		Observer:             metrics,
		Tracer:               tracing.Tracer(),
		Logger:               logger,
	})
	if err != nil {
		return nil, errors.Join(err, shutdown(application, tracing))
	}

	probe := &cron.ProbeJob{
		Source:       client,
		Observer:     metrics,
		Timeout:      cfg.Jenkins.Timeout,
		ScheduleExpr: cfg.Monitor.ProbeSchedule,
		Logger:       logger,
	}
	if !opts.NoScheduler {
		scheduler := cron.NewScheduler(logger)
		if err := scheduler.RegisterJob(&cron.CycleJob{Engine: engine, Interval: cfg.Monitor.Interval, Logger: logger}); err != nil {
			return nil, errors.Join(err, shutdown(application, tracing))
		}
		if err := scheduler.RegisterJob(probe); err != nil {
			return nil, errors.Join(err, shutdown(application, tracing))
		}
		application.AppendModule(monitorModuleID, &monitorModule{scheduler: scheduler, probe: probe, logger: logger})
	}

	handler := reload.NewHandler(application, forgettingJobs{engine: engine, metrics: metrics}, logger, opts.ConfigPath)

	// Register before Start so the gateway resolves them.
	appCtx.RegisterService(ServiceEngine, engine)
	appCtx.RegisterService(ServiceProbe, probe)
	appCtx.RegisterService(ServiceReload, handler)
	appCtx.RegisterService(ServiceSinks, sinks)

	return &Instance{
		Config:   cfg,
		Logger:   logger,
		Redactor: redactor,
		App:      application,
		Context:  appCtx,
		Engine:   engine,
		Jenkins:  client,
		Sinks:    sinks,
		Metrics:  metrics,
		Tracing:  tracing,
		Probe:    probe,
		Reload:   handler,
	}, nil
}

// Close stops every started module and flushes pending spans.
func (i *Instance) Close(ctx context.Context) error {
	i.App.Stop()
	return i.Tracing.Shutdown(ctx)
}

// shutdown releases what Build created before failing.
func shutdown(app *core.App, tracing *telemetry.Tracing) error {
	app.Stop()
	return tracing.Shutdown(context.Background())
}

// newLogger builds the redacting text logger.
func newLogger(w io.Writer, level string, redactor *security.Redactor) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}
