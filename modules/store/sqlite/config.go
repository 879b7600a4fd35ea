package sqlite

import (
	"fmt"
	"time"

	"github.com/flemzord/parrot/internal/cron"
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "sessions.db"
)

// Config holds the SQLite session store configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/sessions.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// Retention drops conversations idle for longer than this. Zero keeps
	// them forever.
	Retention time.Duration `yaml:"retention"`

	// PruneSchedule is the cron expression of the retention job.
	// Defaults to cron.DefaultRetentionSchedule.
	PruneSchedule string `yaml:"prune_schedule"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if c.PruneSchedule == "" {
		c.PruneSchedule = cron.DefaultRetentionSchedule
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	if c.Retention < 0 {
		return fmt.Errorf("sqlite: retention must be non-negative, got %s", c.Retention)
	}
	if c.Retention > 0 {
		if err := cron.ParseSchedule(c.PruneSchedule); err != nil {
			return fmt.Errorf("sqlite: prune_schedule: %w", err)
		}
	}
	return nil
}
