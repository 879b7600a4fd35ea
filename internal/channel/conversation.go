package channel

import (
	"context"
	"errors"
	"fmt"
)

// Conversation is a Sink bound to a single chat.
type Conversation struct {
	sink   Sink
	chatID string
}

// Scope binds sink to chatID.
func Scope(sink Sink, chatID string) Conversation {
	return Conversation{sink: sink, chatID: chatID}
}

// ChatID returns the chat this conversation is bound to.
func (c Conversation) ChatID() string {
	return c.chatID
}

// Send creates a new message in the conversation.
func (c Conversation) Send(ctx context.Context, text string) (MessageRef, error) {
	if c.sink == nil {
		return MessageRef{}, ErrNoSink
	}
	if text == "" {
		return MessageRef{}, ErrEmptyText
	}
	ref, err := c.sink.SendMessage(ctx, c.chatID, text)
	if err != nil {
		return MessageRef{}, fmt.Errorf("channel: send to %s: %w", c.chatID, err)
	}
	return ref, nil
}

// Edit replaces the text of a message previously created in this conversation.
// An edit the platform reports as not modified counts as success.
func (c Conversation) Edit(ctx context.Context, ref MessageRef, text string) error {
	if c.sink == nil {
		return ErrNoSink
	}
	if text == "" {
		return ErrEmptyText
	}
	if ref.ChatID != c.chatID {
		return fmt.Errorf("channel: edit %s/%s from %s: %w", ref.ChatID, ref.MessageID, c.chatID, ErrForeignMessage)
	}
	if err := c.sink.EditMessage(ctx, ref, text); err != nil {
		if errors.Is(err, ErrNotModified) {
			return nil
		}
		return fmt.Errorf("channel: edit %s/%s: %w", ref.ChatID, ref.MessageID, err)
	}
	return nil
}

// Reply sends a one-shot text message, discarding the ref.
func (c Conversation) Reply(ctx context.Context, text string) error {
	_, err := c.Send(ctx, text)
	return err
}

// Typing shows the typing indicator.
func (c Conversation) Typing(ctx context.Context) error {
	if c.sink == nil {
		return ErrNoSink
	}
	return c.sink.SendActivity(ctx, c.chatID, ActivityTyping)
}
