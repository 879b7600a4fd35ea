package render

import (
	"context"
	"strings"
	"sync"
	"time"
)

// EditFunc replaces the text of the message being streamed.
type EditFunc func(ctx context.Context, text string) error

// Throttle rate-limits the edits of one streamed message.
//
// Updates are trailing-edge: only the most recent text is kept, and it is
// sent no sooner than interval after the previous edit (or the initial
// send) completed. Finalize stops the throttle and delivers the final text.
// After Finalize returns no edit is made by the throttle.
type Throttle struct {
	ctx      context.Context
	interval time.Duration
	edit     EditFunc
	onError  func(error)

	// sendMu serializes calls to edit.
	sendMu sync.Mutex

	mu        sync.Mutex
	pending   string
	dirty     bool
	shown     string
	lastSent  time.Time
	timer     *time.Timer
	stopped   bool
	edits     int
	coalesced int
}

// NewThrottle returns a throttle for a message that currently shows shown
// and was sent just now. Edits made by the timer use ctx; failures are
// passed to onError, which may be nil.
func NewThrottle(ctx context.Context, interval time.Duration, shown string, edit EditFunc, onError func(error)) *Throttle {
	return &Throttle{
		ctx:      ctx,
		interval: interval,
		edit:     edit,
		onError:  onError,
		shown:    shown,
		lastSent: time.Now(),
	}
}

// Update replaces the pending text. It never blocks on the sink.
func (t *Throttle) Update(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	if t.dirty {
		t.coalesced++
	}
	t.pending = text
	t.dirty = true
	if t.timer == nil {
		t.timer = time.AfterFunc(t.waitLocked(), t.fire)
	}
}

// waitLocked returns how long to wait before the next edit may start.
func (t *Throttle) waitLocked() time.Duration {
	return max(t.interval-time.Since(t.lastSent), 0)
}

func (t *Throttle) fire() {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	if t.stopped || !t.dirty {
		t.timer = nil
		t.mu.Unlock()
		return
	}
	if wait := t.waitLocked(); wait > 0 {
		t.timer = time.AfterFunc(wait, t.fire)
		t.mu.Unlock()
		return
	}
	text := t.pending
	t.dirty = false
	t.timer = nil
	unchanged := sameDisplay(text, t.shown)
	t.mu.Unlock()

	if unchanged {
		return
	}
	err := t.edit(t.ctx, text)
	t.sent(text, err)
	if err != nil && t.onError != nil {
		t.onError(err)
	}
}

// sent records the outcome of an edit.
func (t *Throttle) sent(text string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSent = time.Now()
	if err == nil {
		t.shown = text
		t.edits++
	}
}

// Finalize stops the throttle, waits for any edit in flight, and makes sure
// the message shows final. The last edit still respects the interval. It is
// skipped when the message already shows final.
func (t *Throttle) Finalize(ctx context.Context, final string) error {
	t.mu.Lock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	unchanged := sameDisplay(final, t.shown)
	wait := t.waitLocked()
	t.mu.Unlock()

	if unchanged {
		return nil
	}
	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	err := t.edit(ctx, final)
	t.sent(final, err)
	return err
}

// Stats returns the number of successful edits and of updates that were
// superseded before being sent.
func (t *Throttle) Stats() (edits, coalesced int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.edits, t.coalesced
}

// sameDisplay reports whether two texts render identically. Messaging
// platforms trim surrounding whitespace, so an edit that only differs
// there is rejected as "not modified".
func sameDisplay(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
