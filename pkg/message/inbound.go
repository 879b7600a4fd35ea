package message

import (
	"encoding/json"
	"time"
)

// InboundMessage represents a text message received from a channel.
type InboundMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel"`
	Sender    Sender    `json:"sender"`
	Chat      Chat      `json:"chat"`
	Text      string    `json:"text"`

	// Command is set when the message starts with a bot command.
	Command *Command `json:"command,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

// IsCommand reports whether the message carries the named command.
func (m *InboundMessage) IsCommand(name string) bool {
	return m.Command != nil && m.Command.Name == name
}
