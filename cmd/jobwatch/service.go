package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/flemzord/jobwatch/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

const serviceStopTimeout = 30 * time.Second

// program adapts app.Serve to the service manager's Start/Stop contract.
// Start must not block, so the monitor runs in its own goroutine.
type program struct {
	params app.RunParams

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errors.New("already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- app.Serve(ctx, p.params) }()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case err := <-done:
		return err
	case <-time.After(serviceStopTimeout):
		return fmt.Errorf("monitor did not stop within %s", serviceStopTimeout)
	}
}

// serviceConfig describes the system service. The installed command line
// pins the configuration path, since services do not inherit the caller's
// environment or working directory.
func serviceConfig(cfgPath string) *service.Config {
	args := []string{"service", "run"}
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	return &service.Config{
		Name:        "jobwatch",
		DisplayName: "jobwatch",
		Description: "Watches Jenkins jobs for missed and failed scheduled runs.",
		Arguments:   args,
	}
}

func newService(cmd *cobra.Command) (service.Service, *program, error) {
	params := runParams(cmd)
	if params.ConfigPath != "" {
		abs, err := filepath.Abs(params.ConfigPath)
		if err != nil {
			return nil, nil, err
		}
		params.ConfigPath = abs
	}
	prg := &program{params: params}
	svc, err := service.New(prg, serviceConfig(params.ConfigPath))
	if err != nil {
		return nil, nil, err
	}
	return svc, prg, nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control jobwatch as a system service",
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the system service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, _, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the system service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := newService(cmd)
			if err != nil {
				return err
			}
			st, err := svc.Status()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusName(st))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := newService(cmd)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	})

	return cmd
}

func statusName(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
