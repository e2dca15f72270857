package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/jobwatch/internal/config"
	"github.com/flemzord/jobwatch/internal/core"
	"github.com/flemzord/jobwatch/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if len(args) == 1 {
				path = args[0]
			}
			cfg, path, err := app.LoadConfig(path)
			if err != nil {
				return err
			}

			// Loading modules runs their Configure, Provision and Validate.
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))
			appCtx := core.NewAppContext(logger).WithModuleConfigs(cfg.Modules)
			application := core.NewApp(appCtx)
			ids := config.Resolve(cfg)
			if err := application.LoadModules(ids); err != nil {
				return err
			}
			defer application.Stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK: %s\n", path)
			fmt.Fprintf(out, "  %d jobs, %d modules\n", len(cfg.Jobs), len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			if len(config.Notifiers(cfg)) == 0 {
				fmt.Fprintln(out, "  warning: no notify module configured, incidents will only be logged")
			}
			return nil
		},
	}
}

// initAnswers collects what `config init` asks for.
type initAnswers struct {
	JenkinsURL string
	Username   string
	Job        string
	Schedule   string
	Threshold  string
	Notifier   string
	Gateway    bool
}

func defaultAnswers() initAnswers {
	return initAnswers{
		JenkinsURL: "https://jenkins.example.com",
		Job:        "nightly-build",
		Schedule:   "0 2 * * *",
		Threshold:  "1h",
		Notifier:   "none",
		Gateway:    true,
	}
}

func configInitCmd() *cobra.Command {
	var (
		force          bool
		nonInteractive bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.DefaultConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			answers := defaultAnswers()
			if !nonInteractive {
				if err := initForm(&answers).Run(); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return nil
					}
					return err
				}
			}

			raw, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, raw, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&nonInteractive, "yes", false, "Write the defaults without prompting")
	return cmd
}

func initForm(a *initAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Jenkins URL").
				Value(&a.JenkinsURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Jenkins user").
				Description("Leave empty for anonymous access. The API token is read from $JENKINS_API_TOKEN.").
				Value(&a.Username),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("First job to watch").
				Description("Use slashes for jobs inside folders.").
				Value(&a.Job).
				Validate(required),
			huh.NewInput().
				Title("Its cron schedule").
				Value(&a.Schedule).
				Validate(config.CheckCron),
			huh.NewInput().
				Title("Alert threshold").
				Value(&a.Threshold).
				Validate(validateDuration),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Notify through").
				Options(notifierOptions()...).
				Value(&a.Notifier),
			huh.NewConfirm().
				Title("Enable the HTTP gateway?").
				Value(&a.Gateway),
		),
	)
}

// notifierOptions lists the compiled-in notification modules that have a
// starter template.
func notifierOptions() []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("Log only", "none")}
	for _, info := range core.GetModulesByNamespace("notify") {
		id := string(info.ID)
		if label, ok := notifierLabels[id]; ok {
			opts = append(opts, huh.NewOption(label, id))
		}
	}
	return opts
}

var notifierLabels = map[string]string{
	"notify.email":    "SMTP email",
	"notify.nats":     "NATS",
	"notify.sendgrid": "SendGrid",
	"notify.slack":    "Slack webhook",
}

func required(s string) error {
	if s == "" {
		return errors.New("required")
	}
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return errors.New("must be a positive duration such as 45m or 2h")
	}
	return nil
}

// notifierTemplates are the starter settings of each notification module.
// ${VAR} references are expanded at load time.
var notifierTemplates = map[string]map[string]any{
	"notify.slack": {
		"webhook_url": "${SLACK_WEBHOOK_URL}",
	},
	"notify.email": {
		"smtp_host": "smtp.example.com",
		"from":      "jobwatch@example.com",
		"to":        []string{"ops@example.com"},
		"username":  "${SMTP_USERNAME:-}",
		"password":  "${SMTP_PASSWORD:-}",
	},
	"notify.sendgrid": {
		"api_key": "${SENDGRID_API_KEY}",
		"from":    "jobwatch@example.com",
		"to":      []string{"ops@example.com"},
	},
	"notify.nats": {
		"url": "nats://127.0.0.1:4222",
	},
}

// renderConfig builds the starter file from a.
func renderConfig(a initAnswers) ([]byte, error) {
	threshold, err := time.ParseDuration(a.Threshold)
	if err != nil {
		return nil, fmt.Errorf("alert threshold: %w", err)
	}

	cfg := config.Config{
		Version: "1",
		Jenkins: config.JenkinsConfig{URL: a.JenkinsURL, Username: a.Username},
		Jobs: []config.JobConfig{{
			Name:           a.Job,
			Schedule:       a.Schedule,
			AlertThreshold: threshold,
		}},
		Modules: map[string]yaml.Node{},
	}
	if a.Username != "" {
		cfg.Jenkins.APIToken = "${JENKINS_API_TOKEN}"
	}

	if tmpl, ok := notifierTemplates[a.Notifier]; ok {
		var node yaml.Node
		if err := node.Encode(tmpl); err != nil {
			return nil, err
		}
		cfg.Modules[a.Notifier] = node
	}
	if a.Gateway {
		var node yaml.Node
		if err := node.Encode(map[string]any{"bind": "127.0.0.1:8080"}); err != nil {
			return nil, err
		}
		cfg.Modules["gateway.http"] = node
	}

	raw, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, err
	}
	header := "# jobwatch configuration. See `jobwatch config check`.\n"
	return append([]byte(header), raw...), nil
}
