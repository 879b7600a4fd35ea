package core

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

// shutdownTimeout bounds the Stop calls of one shutdown.
const shutdownTimeout = 30 * time.Second

// App owns a set of loaded modules and drives them through Start and Stop.
// Modules start in load order and stop in reverse.
type App struct {
	ctx    *AppContext
	logger *slog.Logger
	mods   []*entry
}

type entry struct {
	id      ModuleID
	mod     Module
	running bool
}

func NewApp(ctx *AppContext) *App {
	return &App{ctx: ctx, logger: ctx.Logger.With("component", "core")}
}

// LoadModules loads each id through AppContext.LoadModule. On failure the
// modules already loaded are released and the App is left empty.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.Close()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.mods = append(a.mods, &entry{id: ModuleID(id), mod: mod})
		a.logger.Info("module loaded", "module", id)
	}
	return nil
}

// AppendModule adds a module built outside the registry. It starts after
// everything loaded so far and stops before it.
func (a *App) AppendModule(id string, mod Module) {
	a.mods = append(a.mods, &entry{id: ModuleID(id), mod: mod})
}

func (a *App) Module(id string) (Module, bool) {
	for _, e := range a.mods {
		if string(e.id) == id {
			return e.mod, true
		}
	}
	return nil, false
}

// Start starts the modules in order. If one fails, those already running
// are stopped before the error is returned.
func (a *App) Start() error {
	for i, e := range a.mods {
		if s, ok := e.mod.(Starter); ok {
			a.logger.Info("starting module", "module", string(e.id))
			if err := s.Start(); err != nil {
				a.logger.Error("module start failed", "module", string(e.id), "error", err)
				a.shutdown(a.mods[:i], false)
				return fmt.Errorf("starting module %s: %w", e.id, err)
			}
		}
		// Modules without Start still need Stop to release what Provision
		// opened.
		e.running = true
	}
	a.logger.Info("all modules started", "count", len(a.mods))
	return nil
}

// Stop stops the running modules in reverse order.
func (a *App) Stop() {
	a.shutdown(a.mods, false)
}

// Close stops every loaded module, started or not, and forgets them. It
// releases an App that will never run.
func (a *App) Close() {
	a.shutdown(a.mods, true)
	a.mods = nil
}

func (a *App) shutdown(mods []*entry, all bool) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(mods) - 1; i >= 0; i-- {
		e := mods[i]
		if !e.running && !all {
			continue
		}
		e.running = false
		s, ok := e.mod.(Stopper)
		if !ok {
			continue
		}
		a.logger.Info("stopping module", "module", string(e.id))
		if err := s.Stop(ctx); err != nil {
			a.logger.Error("module stop failed", "module", string(e.id), "error", err)
		}
	}
}

// Run starts the modules and blocks until ctx is done or the process gets
// SIGINT or SIGTERM, then stops them.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	a.logger.Info("shutting down")
	a.Stop()
	a.logger.Info("shutdown complete")
	return nil
}
