// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for parrot.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Bot holds the settings of the reply pipeline itself.
	Bot BotConfig `yaml:"bot"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// BotConfig configures how inbound messages are turned into streamed replies.
type BotConfig struct {
	// RequirePersona rejects plain messages until /imitate has been used.
	// Nil means the default (true).
	RequirePersona *bool `yaml:"require_persona"`

	// ThrottleInterval is the minimum spacing between two edits of the
	// same reply message.
	ThrottleInterval time.Duration `yaml:"throttle_interval"`

	// MaxTokens caps the length of a single completion.
	MaxTokens int `yaml:"max_tokens"`

	// Workers is the number of messages processed concurrently.
	Workers int `yaml:"workers"`

	// InboxSize bounds the number of queued inbound messages.
	InboxSize int `yaml:"inbox_size"`

	// ReplyTimeout bounds the total time spent producing one reply.
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
}

// Default values for BotConfig.
const (
	DefaultThrottleInterval = 300 * time.Millisecond
	DefaultMaxTokens        = 500
	DefaultWorkers          = 10
	DefaultInboxSize        = 256
	DefaultReplyTimeout     = 2 * time.Minute
)

// Defaults fills unset fields with their default values.
func (b *BotConfig) Defaults() {
	if b.RequirePersona == nil {
		v := true
		b.RequirePersona = &v
	}
	if b.ThrottleInterval == 0 {
		b.ThrottleInterval = DefaultThrottleInterval
	}
	if b.MaxTokens == 0 {
		b.MaxTokens = DefaultMaxTokens
	}
	if b.Workers == 0 {
		b.Workers = DefaultWorkers
	}
	if b.InboxSize == 0 {
		b.InboxSize = DefaultInboxSize
	}
	if b.ReplyTimeout == 0 {
		b.ReplyTimeout = DefaultReplyTimeout
	}
}

// PersonaRequired reports whether a persona must be set before chatting.
func (b BotConfig) PersonaRequired() bool {
	return b.RequirePersona == nil || *b.RequirePersona
}
