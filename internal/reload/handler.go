package reload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/jobwatch/internal/config"
	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/internal/monitor"
)

// JobSetter replaces the monitored job set. Implemented by *monitor.Engine.
type JobSetter interface {
	SetJobs(jobs []monitor.Job) []string
}

// Result summarizes a successful reload.
type Result struct {
	Jobs    int      `json:"jobs"`
	Removed []string `json:"removed,omitempty"`
}

// Handler reloads application configuration, swaps the monitored job set
// and notifies modules.
type Handler struct {
	app        *core.App
	jobs       JobSetter
	logger     *slog.Logger
	configPath string
}

// NewHandler creates a reload handler for the config file at configPath.
func NewHandler(app *core.App, jobs JobSetter, logger *slog.Logger, configPath string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		app:        app,
		jobs:       jobs,
		logger:     logger,
		configPath: configPath,
	}
}

// ConfigPath returns the file Reload reads.
func (h *Handler) ConfigPath() string {
	return h.configPath
}

// Reload is HandleReload on the handler's own config file.
func (h *Handler) Reload(ctx context.Context) (Result, error) {
	return h.HandleReload(ctx, h.configPath)
}

// HandleReload loads a fresh config from disk, validates it, applies the
// new job set and calls Reload on all modules that implement core.Reloader.
// Nothing is applied when loading or validation fails.
func (h *Handler) HandleReload(ctx context.Context, configPath string) (Result, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return Result{}, fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return Result{}, fmt.Errorf("validating config: %w", err)
	}
	return h.HandleReloadFromConfig(ctx, cfg)
}

// HandleReloadFromConfig reloads from a pre-loaded, already-validated
// config. The caller is responsible for calling config.Validate before this
// method; it will not re-validate.
func (h *Handler) HandleReloadFromConfig(ctx context.Context, cfg *config.Config) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled before reload: %w", err)
	}

	jobs, err := cfg.BuildJobs()
	if err != nil {
		return Result{}, fmt.Errorf("building jobs: %w", err)
	}

	res := Result{Jobs: len(jobs)}
	if h.jobs != nil {
		res.Removed = h.jobs.SetJobs(jobs)
		for _, id := range res.Removed {
			h.logger.Info("reload: job removed, tracking dropped", "job", id)
		}
	}

	appCtx := h.app.Context().WithModuleConfigs(cfg.Modules)
	if err := h.app.ReloadModules(appCtx); err != nil {
		return res, fmt.Errorf("reloading modules: %w", err)
	}

	h.logger.Info("reload: configuration reloaded", "jobs", res.Jobs, "removed", len(res.Removed))
	return res, nil
}
