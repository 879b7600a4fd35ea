package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/parrot/internal/channel"
	"github.com/flemzord/parrot/internal/provider"
)

// DefaultInterval is the minimum spacing between two edits of a reply.
const DefaultInterval = 300 * time.Millisecond

// finalizeTimeout bounds the final edit, which outlives the reply context.
const finalizeTimeout = 10 * time.Second

// Target is the conversation a reply is rendered into.
// channel.Conversation implements it.
type Target interface {
	Send(ctx context.Context, text string) (channel.MessageRef, error)
	Edit(ctx context.Context, ref channel.MessageRef, text string) error
}

// Reply is the outcome of rendering one stream.
type Reply struct {
	// ID identifies the reply in logs and traces.
	ID string

	// Text is the concatenation of every decoded fragment.
	Text string

	// Ref is the message created for the reply. It is zero when the
	// stream produced no visible text and nothing was sent.
	Ref channel.MessageRef

	State        State
	FinishReason provider.FinishReason

	// Fragments counts fragments that reached the sink.
	Fragments int
	// Edits counts successful edits, including the final one.
	Edits int
	// Coalesced counts updates superseded before they were sent.
	Coalesced int
}

// Sent reports whether a message was created for the reply.
func (r Reply) Sent() bool {
	return !r.Ref.IsZero()
}

// Renderer renders completion streams into chat messages.
// A Renderer is stateless and safe for concurrent use; every call to Render
// gets its own decoder and throttle.
type Renderer struct {
	interval time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer

	// OnEditError, if set, is called for every failed intermediate edit.
	OnEditError func(error)
}

// NewRenderer creates a Renderer. A non-positive interval selects
// DefaultInterval.
func NewRenderer(interval time.Duration, logger *slog.Logger) *Renderer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		interval: interval,
		logger:   logger,
		tracer:   otel.Tracer("github.com/flemzord/parrot/internal/render"),
	}
}

// Interval returns the edit interval.
func (r *Renderer) Interval() time.Duration {
	return r.interval
}

// Render consumes chunks until the channel is closed, a chunk carries an
// error, or ctx is done, and mirrors the text into target.
//
// A failed initial send aborts the reply and is returned. Failed
// intermediate edits are logged and consumption continues. On a stream
// error the text received so far is flushed and the error is returned.
func (r *Renderer) Render(ctx context.Context, chunks <-chan provider.StreamChunk, target Target) (Reply, error) {
	reply := Reply{ID: uuid.NewString(), State: StateAwaitingFirstFragment}

	ctx, span := r.tracer.Start(ctx, "render.reply", trace.WithAttributes(
		attribute.String("reply.id", reply.ID),
	))
	defer span.End()

	logger := r.logger.With("reply_id", reply.ID)

	var (
		dec      Decoder
		buf      strings.Builder
		throttle *Throttle
	)

	forward := func(text string) error {
		if text == "" {
			return nil
		}
		buf.WriteString(text)
		if strings.TrimSpace(text) == "" {
			return nil
		}
		reply.Fragments++

		if throttle != nil {
			throttle.Update(buf.String())
			return nil
		}

		ref, err := target.Send(ctx, buf.String())
		if err != nil {
			return fmt.Errorf("render: initial send: %w", err)
		}
		reply.Ref = ref
		reply.State = StateStreaming
		span.AddEvent("first_fragment")
		throttle = NewThrottle(ctx, r.interval, buf.String(), func(ctx context.Context, text string) error {
			return target.Edit(ctx, ref, text)
		}, func(err error) {
			logger.Warn("streaming edit failed", "error", err, "message_id", ref.MessageID)
			if r.OnEditError != nil {
				r.OnEditError(err)
			}
		})
		return nil
	}

	var streamErr error
loop:
	for {
		select {
		case <-ctx.Done():
			streamErr = ctx.Err()
			break loop
		case chunk, ok := <-chunks:
			if !ok {
				break loop
			}
			if chunk.Err != nil {
				streamErr = chunk.Err
				break loop
			}
			if chunk.FinishReason != "" {
				reply.FinishReason = chunk.FinishReason
			}
			if err := forward(dec.Write(chunk.Data)); err != nil {
				return abort(span, reply, buf.String(), err)
			}
		}
	}

	if streamErr == nil {
		if err := forward(dec.Flush()); err != nil {
			return abort(span, reply, buf.String(), err)
		}
	}
	reply.Text = buf.String()

	if throttle != nil {
		// The reply context may expire while Finalize waits out the interval.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		err := throttle.Finalize(fctx, reply.Text)
		cancel()
		if err != nil {
			logger.Warn("final edit failed", "error", err, "message_id", reply.Ref.MessageID)
		}
		reply.Edits, reply.Coalesced = throttle.Stats()
	}
	reply.State = StateFinalized

	span.SetAttributes(
		attribute.Int("reply.fragments", reply.Fragments),
		attribute.Int("reply.edits", reply.Edits),
		attribute.Int("reply.coalesced", reply.Coalesced),
		attribute.Int("reply.length", len(reply.Text)),
		attribute.Bool("reply.sent", reply.Sent()),
	)

	if streamErr != nil {
		span.RecordError(streamErr)
		span.SetStatus(codes.Error, "stream failed")
		return reply, fmt.Errorf("render: stream: %w", streamErr)
	}
	return reply, nil
}

// abort ends a reply whose message could not be created.
func abort(span trace.Span, reply Reply, text string, err error) (Reply, error) {
	reply.Text = text
	reply.State = StateFinalized
	span.RecordError(err)
	span.SetStatus(codes.Error, "initial send failed")
	return reply, err
}
