// Package app provides the shared entry point of the parrot binary: it turns
// a configuration file into a running set of modules.
package app

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/flemzord/parrot/internal/config"
	"github.com/flemzord/parrot/internal/core"
	"github.com/flemzord/parrot/internal/gateway"
	"github.com/flemzord/parrot/internal/security"
	"github.com/flemzord/parrot/internal/telemetry"
)

// RunParams is what the command line hands to Build and Run.
type RunParams struct {
	// ConfigPath is the YAML file to load. Empty means ResolveConfigPath.
	ConfigPath string
	// DataDir replaces DefaultDataDir when set.
	DataDir  string
	LogLevel slog.Level

	// Build metadata, set through -ldflags.
	Version, Commit, Date string
}

// Run builds the application and runs it until ctx ends or the process
// receives SIGINT or SIGTERM.
func Run(ctx context.Context, params RunParams) error {
	application, err := Build(params)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}

// Build loads and validates the configuration, then loads every configured
// module and wires the reply pipeline between them. The returned App has not
// been started.
func Build(params RunParams) (*core.App, error) {
	path := params.ConfigPath
	if path == "" {
		var err error
		if path, err = ResolveConfigPath(); err != nil {
			return nil, err
		}
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	redactor := security.NewRedactor()
	logger := NewLogger(params.LogLevel, redactor)
	logger.Info("starting parrot",
		"version", params.Version,
		"commit", params.Commit,
		"config", path,
	)

	dataDir := cmp.Or(params.DataDir, DefaultDataDir())
	metrics := telemetry.NewMetrics()

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.ServiceRedactor, redactor)
	appCtx.RegisterService(gateway.ServiceMetrics, metrics)

	ids := config.Resolve(cfg)
	application := core.NewApp(appCtx)
	if err := application.LoadModules(ids); err != nil {
		return nil, fmt.Errorf("loading modules: %w", err)
	}

	// Wire between LoadModules and Start: the provider is published for the
	// gateway, and channels get their inbox before they start receiving.
	if err := wire(application, appCtx, ids, cfg.Bot, metrics, logger); err != nil {
		application.Close()
		return nil, err
	}
	return application, nil
}

// LoadConfig reads the file at path, applies defaults to the bot section and
// validates the result.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Bot.Defaults()
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger returns a text logger on stderr whose output passes through
// redactor before it is written.
func NewLogger(level slog.Level, redactor *security.Redactor) *slog.Logger {
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(security.NewRedactingHandler(inner, redactor))
}
