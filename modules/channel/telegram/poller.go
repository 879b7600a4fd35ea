package telegram

import (
	"context"
	"time"
)

// After maxConsecutivePollingErrors failed getUpdates calls in a row the
// poller backs off for pauseAfterErrors instead of retryAfterError.
const (
	maxConsecutivePollingErrors = 5
	retryAfterError             = time.Second
	pauseAfterErrors            = 30 * time.Second
)

// poller long-polls getUpdates and feeds the updates to an intake.
type poller struct {
	client  *Client
	in      *intake
	request GetUpdatesRequest

	retryDelay time.Duration
	pause      time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func newPoller(client *Client, in *intake, timeout int, allowed []string) *poller {
	return &poller{
		client:     client,
		in:         in,
		request:    GetUpdatesRequest{Timeout: timeout, AllowedUpdates: allowed},
		retryDelay: retryAfterError,
		pause:      pauseAfterErrors,
	}
}

func (p *poller) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.run(ctx)
	}()
}

// stop interrupts the in-flight long poll and waits for the loop to exit.
// It may be called more than once, or without start.
func (p *poller) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *poller) run(ctx context.Context) {
	req := p.request
	failures := 0
	for {
		updates, err := p.client.GetUpdates(ctx, req)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			p.in.logger.Error("getUpdates failed", "error", err, "consecutive_errors", failures)
			wait := p.retryDelay
			if failures >= maxConsecutivePollingErrors {
				p.in.logger.Warn("polling paused after repeated errors", "pause", p.pause)
				wait, failures = p.pause, 0
			}
			if sleep(ctx, wait) != nil {
				return
			}
			continue
		}

		failures = 0
		for i := range updates {
			// The offset moves past an update even when the inbox refuses it,
			// so a full queue cannot wedge the poll.
			req.Offset = updates[i].UpdateID + 1
			_ = p.in.accept(&updates[i])
		}
	}
}
