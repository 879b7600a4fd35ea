package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	robfig "github.com/robfig/cron/v3"
)

var parser = robfig.NewParser(robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow | robfig.Descriptor)

// Scheduler runs registered jobs on their schedules. A job whose previous
// run has not finished skips its turn, and a panicking job is logged
// rather than taking the process down.
type Scheduler struct {
	c      *robfig.Cron
	logger *slog.Logger

	// ctx is handed to every job run and cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	names   map[string]bool
	running bool
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	l := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		c: robfig.New(
			robfig.WithParser(parser),
			robfig.WithLogger(l),
			robfig.WithChain(robfig.Recover(l), robfig.SkipIfStillRunning(l)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		names:  map[string]bool{},
	}
}

// RegisterJob schedules j. Names must be unique and the schedule must parse.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if s.names[name] {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	sched, err := parser.Parse(j.Schedule())
	if err != nil {
		return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
	}
	s.names[name] = true
	s.c.Schedule(sched, robfig.FuncJob(func() { s.run(j) }))
	return nil
}

func (s *Scheduler) run(j Job) {
	s.logger.Debug("cron: job started", "job", j.Name())
	if err := j.Run(s.ctx); err != nil {
		s.logger.Error("cron: job failed", "job", j.Name(), "error", err)
		return
	}
	s.logger.Debug("cron: job completed", "job", j.Name())
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.c.Start()
	s.running = true
	s.logger.Info("cron: scheduler started", "jobs", len(s.names))
	return nil
}

// Stop cancels the context of running jobs and waits for them until ctx
// is done. A stopped Scheduler cannot be restarted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	done := s.c.Stop()
	if !s.running {
		return nil
	}
	s.running = false

	select {
	case <-done.Done():
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: waiting for running jobs: %w", ctx.Err())
	}
}

// cronLogger adapts slog to the logger robfig/cron reports through.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
