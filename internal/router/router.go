package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/flemzord/parrot/internal/provider"
	"github.com/flemzord/parrot/internal/session"
	"github.com/flemzord/parrot/internal/telemetry"
	"github.com/flemzord/parrot/pkg/message"
)

const defaultInboxSize = 256

// MessageHandler processes one inbound message. Calls for one conversation
// never overlap.
type MessageHandler interface {
	Handle(ctx context.Context, msg message.InboundMessage) error
}

// Config configures a Router.
type Config struct {
	WorkerCount int
	InboxSize   int
	Handler     MessageHandler
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
}

// Router queues inbound messages in a bounded inbox and runs them on a
// worker pool, one at a time per conversation. A busy conversation never
// holds more than one worker.
type Router struct {
	handler MessageHandler
	metrics *telemetry.Metrics
	logger  *slog.Logger

	inbox   chan job
	lanes   *lanes
	workers *workers

	// mu guards the inbox against Submit racing the close in Stop.
	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
}

// NewRouter returns a router that is ready to accept messages. Nothing is
// handled until Start.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Handler == nil {
		return nil, ErrNoHandler
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Router{
		handler: cfg.Handler,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		inbox:   make(chan job, cfg.InboxSize),
		lanes:   newLanes(cfg.InboxSize),
		workers: &workers{n: cfg.WorkerCount},
	}, nil
}

// Start launches the workers. Handlers run under a child of ctx that Stop
// cancels.
func (r *Router) Start(ctx context.Context) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.logger.Warn("router: start ignored, router already stopped")
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.workers.start(ctx, r.inbox, r.dispatch)
	r.logger.Info("router: started", "workers", r.workers.n, "inbox_size", cap(r.inbox))
}

// Submit queues msg without blocking. Messages of one conversation are
// handled in the order they were submitted. A full inbox drops the message
// with ErrInboxFull.
func (r *Router) Submit(msg message.InboundMessage) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrRouterStopped
	}

	j := job{msg: msg, key: session.KeyFromMessage(msg)}
	if r.lanes.admit(j, r.inbox) {
		return nil
	}

	r.metrics.InboxDropped()
	r.logger.Warn("router: inbox full, message dropped",
		"channel", j.key.Channel,
		"chat_id", j.key.ChatID,
	)
	return ErrInboxFull
}

// dispatch runs j, then everything its conversation queued meanwhile.
// The worker is back on the inbox as soon as the lane is empty.
func (r *Router) dispatch(ctx context.Context, j job) {
	for ok := true; ok; j, ok = r.lanes.next(j.key) {
		r.handle(ctx, j)
	}
}

func (r *Router) handle(ctx context.Context, j job) {
	err := r.handler.Handle(ctx, j.msg)
	if err == nil {
		return
	}
	level := slog.LevelError
	if provider.IsTransient(err) || errors.Is(err, context.Canceled) {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "router: message handling failed",
		"error", err,
		"channel", j.key.Channel,
		"chat_id", j.key.ChatID,
		"message_id", j.msg.ID,
	)
}

// Stop refuses new messages, cancels handlers in flight and waits for the
// workers. Queued messages, backlogs included, are drained against the
// cancelled context.
// Calling Stop more than once is harmless.
func (r *Router) Stop(_ context.Context) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.inbox)
	cancel := r.cancel
	r.mu.Unlock()

	r.logger.Info("router: stopping")
	if cancel != nil {
		cancel()
	}
	r.workers.wait()
	r.logger.Info("router: stopped")
}
