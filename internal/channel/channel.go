// Package channel defines the bridge between messaging platforms and the
// router: inbound delivery through Channel and outbound replies through Sink.
package channel

import (
	"context"

	"github.com/flemzord/parrot/internal/core"
	"github.com/flemzord/parrot/pkg/message"
)

// Channel is the bridge between a messaging platform and the router.
// Every concrete channel (Telegram, ...) must implement this interface.
//
// A channel receives updates from its platform, converts them to
// message.InboundMessage and pushes them to the router via the inbox
// callback. Replies go back through the channel's Sink.
type Channel interface {
	core.Module
	Sink

	// SetInbox gives the channel a function to push inbound messages to the router.
	// The router calls this during wiring, before Start().
	SetInbox(fn func(msg message.InboundMessage) error)
}

// MessageRef identifies a message previously created through a Sink.
type MessageRef struct {
	ChatID    string
	MessageID string
}

// IsZero reports whether the ref is unset.
func (r MessageRef) IsZero() bool {
	return r.MessageID == ""
}

// Activity is a transient status shown to the user, such as "typing".
type Activity string

// ActivityTyping shows that a reply is being prepared.
const ActivityTyping Activity = "typing"

// Sink is the outbound side of a messaging platform.
//
// Implementations must reject empty text and should treat an edit with
// unchanged text as a no-op rather than an error.
type Sink interface {
	// SendMessage creates a new message in the chat and returns its ref.
	SendMessage(ctx context.Context, chatID, text string) (MessageRef, error)

	// EditMessage replaces the text of an existing message.
	EditMessage(ctx context.Context, ref MessageRef, text string) error

	// SendActivity shows a transient activity indicator in the chat.
	SendActivity(ctx context.Context, chatID string, activity Activity) error
}
