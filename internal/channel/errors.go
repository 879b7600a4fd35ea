package channel

import "errors"

// Sentinel errors for channel operations.
var (
	// ErrNoSink indicates a conversation was scoped without a sink.
	ErrNoSink = errors.New("channel: no sink")

	// ErrNoInbox indicates a channel's inbox callback has not been set.
	ErrNoInbox = errors.New("channel: inbox not set")

	// ErrEmptyText indicates an attempt to send or edit with empty text.
	ErrEmptyText = errors.New("channel: empty text")

	// ErrNotModified indicates an edit whose text equals the current text.
	// Sinks may return it; callers treat it as success.
	ErrNotModified = errors.New("channel: message not modified")

	// ErrForeignMessage indicates an edit targeting another chat's message.
	ErrForeignMessage = errors.New("channel: message belongs to another chat")
)
