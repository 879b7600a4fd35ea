package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/parrot/internal/channel"
	"github.com/flemzord/parrot/internal/provider"
	"github.com/flemzord/parrot/internal/render"
	"github.com/flemzord/parrot/internal/session"
	"github.com/flemzord/parrot/internal/telemetry"
	"github.com/flemzord/parrot/pkg/message"
)

// HandlerConfig groups the dependencies of a Handler.
type HandlerConfig struct {
	Provider provider.Provider
	Store    session.Store
	Renderer *render.Renderer

	// Sinks maps channel names (InboundMessage.Channel) to their sink.
	Sinks map[string]channel.Sink

	// RequirePersona makes plain messages wait for /imitate.
	RequirePersona bool
	MaxTokens      int
	// ReplyTimeout bounds the completion and rendering of one reply.
	// Zero means no limit.
	ReplyTimeout time.Duration

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Handler turns inbound messages into streamed replies.
type Handler struct {
	provider       provider.Provider
	store          session.Store
	renderer       *render.Renderer
	sinks          map[string]channel.Sink
	requirePersona bool
	maxTokens      int
	replyTimeout   time.Duration
	metrics        *telemetry.Metrics
	logger         *slog.Logger
	tracer         trace.Tracer
	cmds           map[string]CommandFunc
}

// NewHandler creates a Handler. Provider, Store and Renderer are required.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	switch {
	case cfg.Provider == nil:
		return nil, errors.New("router: handler requires a provider")
	case cfg.Store == nil:
		return nil, errors.New("router: handler requires a session store")
	case cfg.Renderer == nil:
		return nil, errors.New("router: handler requires a renderer")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sinks := make(map[string]channel.Sink, len(cfg.Sinks))
	for name, s := range cfg.Sinks {
		sinks[name] = telemetry.InstrumentSink(s, cfg.Metrics)
	}

	h := &Handler{
		provider:       cfg.Provider,
		store:          cfg.Store,
		renderer:       cfg.Renderer,
		sinks:          sinks,
		requirePersona: cfg.RequirePersona,
		maxTokens:      cfg.MaxTokens,
		replyTimeout:   cfg.ReplyTimeout,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		tracer:         otel.Tracer("github.com/flemzord/parrot/internal/router"),
	}
	h.cmds = h.commands()
	return h, nil
}

// Handle implements MessageHandler.
func (h *Handler) Handle(ctx context.Context, msg message.InboundMessage) error {
	sink, ok := h.sinks[msg.Channel]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, msg.Channel)
	}
	conv := channel.Scope(sink, msg.Chat.ID)
	key := session.KeyFromMessage(msg)

	ctx, span := h.tracer.Start(ctx, "router.handle", trace.WithAttributes(
		attribute.String("channel", msg.Channel),
		attribute.String("chat.id", msg.Chat.ID),
		attribute.String("message.id", msg.ID),
	))
	defer span.End()

	var err error
	if msg.Command != nil {
		if cmd, ok := h.cmds[msg.Command.Name]; ok {
			span.SetAttributes(attribute.String("command", msg.Command.Name))
			h.metrics.MessageReceived(msg.Command.Name)
			err = cmd(ctx, conv, key, msg.Command.Args)
			return recordSpanError(span, err)
		}
	}

	h.metrics.MessageReceived("text")
	err = h.handleText(ctx, conv, key, msg.Text)
	return recordSpanError(span, err)
}

// handleText sends the message to the provider with the conversation's
// transcript and streams the answer back. The transcript is only updated
// once the whole reply has been delivered.
func (h *Handler) handleText(ctx context.Context, conv channel.Conversation, key session.Key, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	start := time.Now()

	if err := conv.Typing(ctx); err != nil {
		h.logger.Debug("typing indicator failed", "error", err, "chat_id", key.ChatID)
	}

	data, err := h.store.Get(ctx, key)
	if err != nil {
		h.metrics.ReplyFinished(telemetry.OutcomeError, time.Since(start))
		return fmt.Errorf("router: loading session %s: %w", key, err)
	}

	if h.requirePersona && !data.HasPersona() {
		h.metrics.ReplyFinished(telemetry.OutcomePersonaRequired, time.Since(start))
		return conv.Reply(ctx, PersonaRequiredText)
	}

	request := data.Transcript.Append(provider.LLMMessage{Role: provider.MessageRoleUser, Content: text})

	if h.replyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.replyTimeout)
		defer cancel()
	}

	chunks, err := h.stream(ctx, request)
	if err != nil {
		h.metrics.ReplyFinished(outcome(err), time.Since(start))
		return fmt.Errorf("router: starting completion: %w", err)
	}

	reply, err := h.renderer.Render(ctx, chunks, conv)
	h.metrics.UpdatesCoalesced(reply.Coalesced)
	if err != nil {
		h.metrics.ReplyFinished(outcome(err), time.Since(start))
		return fmt.Errorf("router: reply %s: %w", reply.ID, err)
	}
	if !reply.Sent() {
		h.metrics.ReplyFinished(telemetry.OutcomeEmpty, time.Since(start))
		h.logger.Info("empty completion, nothing sent", "chat_id", key.ChatID, "reply_id", reply.ID)
		return nil
	}

	data.Transcript = request.Append(provider.LLMMessage{Role: provider.MessageRoleAssistant, Content: reply.Text})
	if err := h.store.Set(context.WithoutCancel(ctx), key, data); err != nil {
		h.metrics.ReplyFinished(telemetry.OutcomeError, time.Since(start))
		return fmt.Errorf("router: saving session %s: %w", key, err)
	}

	h.metrics.ReplyFinished(telemetry.OutcomeOK, time.Since(start))
	h.logger.Debug("reply delivered",
		"chat_id", key.ChatID,
		"reply_id", reply.ID,
		"fragments", reply.Fragments,
		"edits", reply.Edits,
		"coalesced", reply.Coalesced,
		"finish_reason", reply.FinishReason,
	)
	return nil
}

// stream starts the completion inside its own span.
func (h *Handler) stream(ctx context.Context, request session.Transcript) (<-chan provider.StreamChunk, error) {
	ctx, span := h.tracer.Start(ctx, "provider.stream", trace.WithAttributes(
		attribute.String("model", h.provider.ModelName()),
		attribute.Int("transcript.turns", len(request)),
	))
	defer span.End()

	chunks, err := h.provider.Stream(ctx, provider.CompletionRequest{
		Messages:  request,
		MaxTokens: h.maxTokens,
	})
	return chunks, recordSpanError(span, err)
}

func outcome(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return telemetry.OutcomeTimeout
	}
	return telemetry.OutcomeError
}

func recordSpanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
