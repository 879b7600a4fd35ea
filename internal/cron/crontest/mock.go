// Package crontest holds fakes for code that schedules or is scheduled by
// the cron package.
package crontest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flemzord/parrot/internal/cron"
	"github.com/flemzord/parrot/internal/session"
)

var (
	_ cron.Job       = (*Job)(nil)
	_ session.Pruner = (*Pruner)(nil)
)

// Job is a cron.Job that counts its runs.
type Job struct {
	JobName string
	Expr    string
	RunFunc func(ctx context.Context) error

	Runs atomic.Int32
}

func (j *Job) Name() string     { return j.JobName }
func (j *Job) Schedule() string { return j.Expr }

func (j *Job) Run(ctx context.Context) error {
	j.Runs.Add(1)
	if j.RunFunc == nil {
		return nil
	}
	return j.RunFunc(ctx)
}

// Pruner is a session.Pruner that counts its calls. Without PruneFunc it
// prunes nothing.
type Pruner struct {
	PruneFunc func(ctx context.Context, maxIdle time.Duration) (int, error)

	Calls atomic.Int32
}

func (p *Pruner) Prune(ctx context.Context, maxIdle time.Duration) (int, error) {
	p.Calls.Add(1)
	if p.PruneFunc == nil {
		return 0, nil
	}
	return p.PruneFunc(ctx, maxIdle)
}
