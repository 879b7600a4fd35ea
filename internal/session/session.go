// Package session holds per-conversation state: the persona label and the
// transcript sent to the provider with every request.
package session

import (
	"context"
	"time"

	"github.com/flemzord/parrot/internal/provider"
	"github.com/flemzord/parrot/pkg/message"
)

// ServiceStore is the service name under which a persistent store module
// publishes its Store.
const ServiceStore = "session.store"

// Key identifies a conversation by channel and chat.
type Key struct {
	Channel string
	ChatID  string
}

// KeyFromMessage derives the session key of an inbound message.
func KeyFromMessage(msg message.InboundMessage) Key {
	return Key{Channel: msg.Channel, ChatID: msg.Chat.ID}
}

// String returns the storage form of the key, "<channel>:<chat id>".
func (k Key) String() string {
	return k.Channel + ":" + k.ChatID
}

// Transcript is the ordered list of turns of a conversation.
type Transcript []provider.LLMMessage

// Append returns a new transcript with turns added at the end. The receiver
// is never modified, so a transcript read from a Store can be extended
// without affecting the stored copy.
func (t Transcript) Append(turns ...provider.LLMMessage) Transcript {
	out := make(Transcript, 0, len(t)+len(turns))
	out = append(out, t...)
	return append(out, turns...)
}

// Clone returns a copy of t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	return t.Append()
}

// Data is the state stored for one conversation.
type Data struct {
	// ID is a stable identifier assigned by the store on first write.
	ID string

	// Persona is who the bot is imitating. Empty until /imitate is used.
	Persona string

	Transcript Transcript

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPersona reports whether a persona has been set.
func (d Data) HasPersona() bool {
	return d.Persona != ""
}

// Store persists conversation state.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored data for key, or the zero Data when the
	// conversation has never been written.
	Get(ctx context.Context, key Key) (Data, error)

	// Set replaces the stored data for key.
	Set(ctx context.Context, key Key, data Data) error
}

// Pruner is implemented by stores that can drop idle conversations.
type Pruner interface {
	// Prune removes conversations not updated for longer than maxIdle and
	// returns how many were removed.
	Prune(ctx context.Context, maxIdle time.Duration) (int, error)
}
