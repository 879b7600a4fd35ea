// Package sqlite implements the store.sqlite module: conversation state
// persisted in a SQLite database through modernc.org/sqlite (pure Go, no
// CGO), with optional cron-driven retention of idle conversations.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/parrot/internal/core"
	"github.com/flemzord/parrot/internal/cron"
	"github.com/flemzord/parrot/internal/session"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module is the store.sqlite module.
type Module struct {
	config    Config
	logger    *slog.Logger
	store     *Store
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. It opens the database and
// publishes the store under session.ServiceStore.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	db, err := openDB(context.Background(), m.config.Path, m.config.walEnabled(), m.config.BusyTimeout)
	if err != nil {
		return err
	}
	m.store = newStore(db)

	ctx.RegisterService(session.ServiceStore, m.store)

	m.logger.Info("sqlite session store provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"retention", m.config.Retention,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if m.store == nil {
		return errors.New("sqlite: store not provisioned")
	}
	if err := m.store.db.PingContext(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Start implements core.Starter. It starts the retention job when a
// retention period is configured.
func (m *Module) Start() error {
	if m.config.Retention <= 0 {
		return nil
	}

	scheduler := cron.NewScheduler(m.logger)
	if err := scheduler.RegisterJob(&cron.SessionRetentionJob{
		Store:        m.store,
		MaxIdle:      m.config.Retention,
		Logger:       m.logger,
		ScheduleExpr: m.config.PruneSchedule,
	}); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}
	m.scheduler = scheduler
	return nil
}

// Stop implements core.Stopper. The retention job is stopped before the
// database is closed.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("sqlite session store stopping")

	var errs []error
	if m.scheduler != nil {
		errs = append(errs, m.scheduler.Stop(ctx))
		m.scheduler = nil
	}
	if m.store != nil {
		errs = append(errs, m.store.Close())
	}
	return errors.Join(errs...)
}

// Store returns the session store.
func (m *Module) Store() *Store {
	return m.store
}
