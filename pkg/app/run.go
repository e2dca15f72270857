// Package app provides the shared entry point of the jobwatch binary.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flemzord/jobwatch/internal/config"
	"github.com/flemzord/jobwatch/internal/reload"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// LogLevel overrides the configured level when non-empty.
	LogLevel string
}

// LoadConfig resolves, loads and validates the configuration file.
func LoadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Run loads configuration, starts all modules, and blocks until SIGINT or
// SIGTERM is received.
func Run(params RunParams) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Serve(ctx, params)
}

// Serve is Run driven by ctx: it returns once ctx is cancelled and every
// module has stopped. SIGHUP and file-change events trigger a live
// configuration reload of the job set and of modules that implement
// core.Reloader.
func Serve(ctx context.Context, params RunParams) error {
	cfg, cfgPath, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return err
	}

	inst, err := Build(ctx, cfg, Options{
		ConfigPath: cfgPath,
		Version:    params.Version,
		LogLevel:   params.LogLevel,
	})
	if err != nil {
		return err
	}
	logger := inst.Logger
	logger.Info("jobwatch starting",
		"version", params.Version,
		"commit", params.Commit,
		"jenkins", cfg.Jenkins.URL,
		"jobs", len(cfg.Jobs),
	)

	if err := inst.App.Start(); err != nil {
		_ = inst.Tracing.Shutdown(context.Background())
		return err
	}

	// --- signal handling ---
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	defer signal.Stop(hupCh)

	// --- file watcher ---
	watcher := reload.NewWatcher(reload.WatcherConfig{
		ConfigPath: cfgPath,
	})
	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	watcher.Start(watchCtx)
	defer watcher.Stop()

	// --- main event loop ---
	for {
		select {
		case <-hupCh:
			logger.Info("SIGHUP received, reloading configuration")
			if _, err := inst.Reload.Reload(watchCtx); err != nil {
				logger.Error("reload failed", "error", err)
			}
		case evt := <-watcher.Events():
			logger.Info("config file changed, reloading", "path", evt.ConfigPath)
			if _, err := inst.Reload.Reload(watchCtx); err != nil {
				logger.Error("reload failed", "error", err)
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := inst.Close(closeCtx)
			cancel()
			if err != nil {
				logger.Warn("trace flush failed", "error", err)
			}
			logger.Info("shutdown complete")
			return nil
		}
	}
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/jobwatch/jobwatch.yaml → ~/.config/jobwatch/jobwatch.yaml → ./jobwatch.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "jobwatch", "jobwatch.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "jobwatch", "jobwatch.yaml"))
	}

	candidates = append(candidates, "jobwatch.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultConfigPath is where `jobwatch config init` writes by default.
func DefaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdg, "jobwatch", "jobwatch.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "jobwatch", "jobwatch.yaml")
}
