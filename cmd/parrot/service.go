package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/parrot/pkg/app"
)

// program adapts the app lifecycle to service.Interface.
type program struct {
	params app.RunParams
	logger *slog.Logger
	exit   func(code int)

	cancel context.CancelFunc
	done   chan error
}

func newProgram(params app.RunParams) *program {
	return &program{params: params, logger: slog.Default(), exit: os.Exit}
}

// Start builds the app synchronously so configuration errors reach the
// service manager, then runs it in the background.
func (p *program) Start(service.Service) error {
	application, err := app.Build(p.params)
	if err != nil {
		return err
	}
	p.launch(application.Run)
	return nil
}

// launch runs fn until Stop. If fn returns before Stop was asked for, the
// process exits non-zero so the service manager sees the failure and can
// restart the unit.
func (p *program) launch(fn func(context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		err := fn(ctx)
		if ctx.Err() == nil {
			p.logger.Error("parrot stopped without a stop request", "error", err)
			p.exit(1)
		}
		p.done <- err
	}()
}

func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

// serviceConfig describes the parrot unit. cfgPath must be absolute since
// service managers do not run in the caller's working directory.
func serviceConfig(cfgPath, logLevel string) *service.Config {
	return &service.Config{
		Name:        "parrot",
		DisplayName: "Parrot",
		Description: "Telegram bot that imitates whoever you ask it to.",
		Arguments:   []string{"service", "run", "--config", cfgPath, "--log-level", logLevel},
	}
}

func newService(cmd *cobra.Command) (service.Service, error) {
	params, err := runParams(cmd)
	if err != nil {
		return nil, err
	}
	if params.ConfigPath == "" {
		resolved, err := app.ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		params.ConfigPath = resolved
	}
	abs, err := filepath.Abs(params.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	params.ConfigPath = abs

	levelName, _ := cmd.Flags().GetString("log-level")
	return service.New(newProgram(params), serviceConfig(abs, levelName))
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage parrot as a system service",
	}

	for _, action := range service.ControlAction {
		sub := &cobra.Command{
			Use:   action,
			Short: "Service " + action,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "parrot service: %s done\n", action)
				return nil
			},
		}
		addRunFlags(sub)
		cmd.AddCommand(sub)
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the service state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService(cmd)
			if err != nil {
				return err
			}
			st, err := s.Status()
			if errors.Is(err, service.ErrNotInstalled) {
				fmt.Fprintln(cmd.OutOrStdout(), "parrot service is not installed")
				return nil
			}
			if err != nil {
				return fmt.Errorf("service status: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "parrot service is %s\n", statusName(st))
			return nil
		},
	}
	addRunFlags(status)

	run := &cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService(cmd)
			if err != nil {
				return err
			}
			return s.Run()
		},
	}
	addRunFlags(run)

	cmd.AddCommand(status, run)
	return cmd
}

func statusName(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "in an unknown state"
	}
}
