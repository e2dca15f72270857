package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/jobwatch/internal/alert"
	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/internal/cron"
	"github.com/flemzord/jobwatch/internal/monitor"
	"github.com/flemzord/jobwatch/internal/telemetry"
)

// monitorModuleID is the lifecycle slot of the tick driver.
const monitorModuleID core.ModuleID = "monitor"

// monitorModule wraps the cron scheduler to satisfy core.Module,
// core.Starter and core.Stopper, so periodic checks participate in the App
// lifecycle. It is appended after every configured module, so sinks and
// the gateway are up before the first cycle runs.
type monitorModule struct {
	scheduler *cron.Scheduler
	probe     *cron.ProbeJob
	logger    *slog.Logger
}

func (m *monitorModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: monitorModuleID}
}

// Start probes the job server once, so an unreachable server is reported
// at startup, then starts the schedule.
func (m *monitorModule) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := m.probe.Probe(ctx); err != nil {
		m.logger.Warn("monitor: initial probe did not complete", "error", err)
	}
	return m.scheduler.Start()
}

func (m *monitorModule) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// wireSinks registers every loaded module implementing alert.Sink on r.
// Must be called after LoadModules. When no notification module is
// configured, incidents are also written to the log.
func wireSinks(app *core.App, r *alert.Router, logger *slog.Logger) error {
	notifiers := 0
	for _, id := range app.Modules() {
		mod, ok := app.Module(string(id))
		if !ok {
			continue
		}
		sink, ok := mod.(alert.Sink)
		if !ok {
			continue
		}
		if err := r.Register(string(id), sink); err != nil {
			return err
		}
		if strings.HasPrefix(string(id), "notify.") {
			notifiers++
		}
		logger.Info("alert: registered sink", "sink", string(id))
	}

	if notifiers == 0 {
		logger.Warn("alert: no notification module configured, incidents will only be logged")
		if err := r.Register("log", alert.NewLogSink(logger)); err != nil {
			return err
		}
	}
	return nil
}

// forgettingJobs drops the metric series of jobs removed by a reload.
type forgettingJobs struct {
	engine  *monitor.Engine
	metrics *telemetry.Metrics
}

func (f forgettingJobs) SetJobs(list []monitor.Job) []string {
	removed := f.engine.SetJobs(list)
	if len(removed) > 0 {
		f.metrics.ForgetJobs(removed)
	}
	return removed
}
