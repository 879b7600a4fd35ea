package router

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/flemzord/parrot/internal/session"
	"github.com/flemzord/parrot/pkg/message"
)

// DefaultWorkerCount is used when Config.WorkerCount is not positive.
const DefaultWorkerCount = 10

// job is one queued inbound message with its conversation key.
type job struct {
	msg message.InboundMessage
	key session.Key
}

// workers drains jobs with a fixed number of goroutines.
type workers struct {
	n int
	g errgroup.Group
}

// start launches the goroutines. Each returns once jobs is closed and empty.
func (w *workers) start(ctx context.Context, jobs <-chan job, run func(context.Context, job)) {
	for range w.n {
		w.g.Go(func() error {
			for j := range jobs {
				run(ctx, j)
			}
			return nil
		})
	}
}

func (w *workers) wait() {
	_ = w.g.Wait()
}
