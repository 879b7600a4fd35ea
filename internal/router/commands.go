package router

import (
	"context"
	"fmt"

	"github.com/flemzord/parrot/internal/channel"
	"github.com/flemzord/parrot/internal/provider"
	"github.com/flemzord/parrot/internal/session"
)

// Fixed replies.
const (
	GreetingText        = "Hey! Use the command /imitate <someone> to start 🤩"
	PersonaRequiredText = "You have to use /imitate first"
)

// PersonaDirective returns the system turn that makes the model act as who.
func PersonaDirective(who string) string {
	return fmt.Sprintf("From now on, you are not an AI. You are %s. You have to talk and act as if you are %s.", who, who)
}

// ImitatingText confirms a persona change.
func ImitatingText(who string) string {
	return "I'm now imitating " + who
}

// PersonaTranscript returns a transcript holding only the persona directive.
func PersonaTranscript(who string) session.Transcript {
	return session.Transcript{{Role: provider.MessageRoleSystem, Content: PersonaDirective(who)}}
}

// CommandFunc handles a bot command. args is the text after the command.
type CommandFunc func(ctx context.Context, conv channel.Conversation, key session.Key, args string) error

// commands returns the built-in command table.
func (h *Handler) commands() map[string]CommandFunc {
	return map[string]CommandFunc{
		"start":   h.start,
		"imitate": h.imitate,
	}
}

// start greets the user.
func (h *Handler) start(ctx context.Context, conv channel.Conversation, _ session.Key, _ string) error {
	return conv.Reply(ctx, GreetingText)
}

// imitate replaces the conversation with a single persona directive.
// who is used verbatim.
func (h *Handler) imitate(ctx context.Context, conv channel.Conversation, key session.Key, who string) error {
	data, err := h.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("router: loading session %s: %w", key, err)
	}

	data.Persona = who
	data.Transcript = PersonaTranscript(who)
	if err := h.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("router: saving session %s: %w", key, err)
	}

	h.logger.Info("persona set", "channel", key.Channel, "chat_id", key.ChatID, "persona", who)
	return conv.Reply(ctx, ImitatingText(who))
}
