// Package provider defines the contract between parrot and a streaming
// text-completion backend. Concrete implementations live in separate
// packages (e.g. modules/provider/openai) and also implement core.Module.
package provider

import "context"

// Provider produces one assistant reply as a lazy sequence of fragments.
type Provider interface {
	// Stream sends a completion request and returns a channel of chunks.
	// Initial connection errors are returned directly. Mid-stream errors
	// are delivered via StreamChunk.Err, after which the channel is closed.
	// The channel is closed when the reply is complete.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface that providers may implement
// to support active health probing from the gateway's /health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
