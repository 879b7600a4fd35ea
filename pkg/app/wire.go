package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/parrot/internal/channel"
	"github.com/flemzord/parrot/internal/config"
	"github.com/flemzord/parrot/internal/core"
	"github.com/flemzord/parrot/internal/gateway"
	"github.com/flemzord/parrot/internal/provider"
	"github.com/flemzord/parrot/internal/render"
	"github.com/flemzord/parrot/internal/router"
	"github.com/flemzord/parrot/internal/session"
	"github.com/flemzord/parrot/internal/telemetry"
)

// routerModule wraps a *router.Router to satisfy core.Module, core.Starter,
// and core.Stopper, so the router participates in the App lifecycle.
type routerModule struct {
	router *router.Router
	ctx    context.Context
}

func (m *routerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "router"}
}

func (m *routerModule) Start() error {
	m.router.Start(m.ctx)
	return nil
}

func (m *routerModule) Stop(ctx context.Context) error {
	m.router.Stop(ctx)
	return nil
}

// wire discovers channels, the provider and the session store among the
// loaded modules, builds the reply pipeline on top of them and appends the
// router to the app lifecycle. Must be called after LoadModules and before
// Start.
func wire(
	app *core.App,
	appCtx *core.AppContext,
	ids []string,
	bot config.BotConfig,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) error {
	sinks := make(map[string]channel.Sink)
	var channels []channel.Channel
	var completions provider.Provider

	for _, id := range ids {
		mod, ok := app.Module(id)
		if !ok {
			continue
		}
		if ch, ok := mod.(channel.Channel); ok {
			// Channels tag inbound messages with the module name ("telegram"),
			// so replies are routed back by that name.
			name := core.ModuleID(id).Name()
			if _, dup := sinks[name]; dup {
				return fmt.Errorf("wire: duplicate channel name %q", name)
			}
			sinks[name] = ch
			channels = append(channels, ch)
			logger.Info("wire: registered channel", "channel", name)
		}
		if p, ok := mod.(provider.Provider); ok {
			if completions != nil {
				return fmt.Errorf("wire: more than one provider module configured (%s)", id)
			}
			completions = p
			logger.Info("wire: discovered provider", "module", id, "model", p.ModelName())
		}
	}

	if len(channels) == 0 {
		return errors.New("wire: at least one channel module is required")
	}
	if completions == nil {
		return errors.New("wire: a provider module is required")
	}
	appCtx.RegisterService(gateway.ServiceProvider, completions)

	store := lookupStore(appCtx, logger)

	handler, err := router.NewHandler(router.HandlerConfig{
		Provider:       completions,
		Store:          store,
		Renderer:       render.NewRenderer(bot.ThrottleInterval, logger.With("component", "render")),
		Sinks:          sinks,
		RequirePersona: bot.PersonaRequired(),
		MaxTokens:      bot.MaxTokens,
		ReplyTimeout:   bot.ReplyTimeout,
		Metrics:        metrics,
		Logger:         logger.With("component", "handler"),
	})
	if err != nil {
		return fmt.Errorf("creating handler: %w", err)
	}

	r, err := router.NewRouter(router.Config{
		WorkerCount: bot.Workers,
		InboxSize:   bot.InboxSize,
		Handler:     handler,
		Metrics:     metrics,
		Logger:      logger.With("component", "router"),
	})
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}

	for _, ch := range channels {
		ch.SetInbox(r.Submit)
	}

	app.AppendModule("router", &routerModule{
		router: r,
		ctx:    context.Background(),
	})

	logger.Info("wire: reply pipeline ready",
		"channels", len(channels),
		"require_persona", bot.PersonaRequired(),
		"throttle", bot.ThrottleInterval,
	)
	return nil
}

// lookupStore returns the session store published by a store module, or a
// process-local one when none is configured.
func lookupStore(appCtx *core.AppContext, logger *slog.Logger) session.Store {
	if svc, ok := appCtx.GetService(session.ServiceStore); ok {
		if s, ok := svc.(session.Store); ok {
			return s
		}
		logger.Warn("wire: ignoring service with unexpected type", "service", session.ServiceStore)
	}
	logger.Info("wire: no store module configured, sessions are kept in memory")
	return session.NewMemoryStore()
}
