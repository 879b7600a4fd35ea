package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/parrot/internal/session"
)

// DefaultRetentionSchedule runs retention every fifteen minutes.
const DefaultRetentionSchedule = "*/15 * * * *"

// SessionRetentionJob removes conversations that have been idle longer
// than MaxIdle.
type SessionRetentionJob struct {
	Store        session.Pruner
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultRetentionSchedule
}

// Compile-time interface check.
var _ Job = (*SessionRetentionJob)(nil)

// Name implements Job.
func (j *SessionRetentionJob) Name() string {
	return "session_retention"
}

// Schedule implements Job.
func (j *SessionRetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultRetentionSchedule
}

// Run prunes sessions idle longer than MaxIdle.
func (j *SessionRetentionJob) Run(ctx context.Context) error {
	if j.MaxIdle <= 0 {
		return errors.New("cron: session retention requires a positive max idle")
	}
	pruned, err := j.Store.Prune(ctx, j.MaxIdle)
	if err != nil {
		return fmt.Errorf("cron: pruning sessions: %w", err)
	}
	if pruned > 0 && j.Logger != nil {
		j.Logger.Info("cron: pruned idle sessions", "count", pruned, "max_idle", j.MaxIdle)
	}
	return nil
}
