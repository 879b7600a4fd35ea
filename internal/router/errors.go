// Package router dispatches inbound messages to the reply pipeline,
// serializing work per conversation and running conversations in parallel.
package router

import "errors"

// Sentinel errors for router operations.
var (
	// ErrInboxFull indicates the router's message inbox is at capacity
	// and the incoming message was dropped.
	ErrInboxFull = errors.New("router: inbox full, message dropped")

	// ErrRouterStopped indicates the router has been shut down and is
	// no longer accepting messages.
	ErrRouterStopped = errors.New("router: stopped")

	// ErrNoHandler indicates no message handler has been configured.
	ErrNoHandler = errors.New("router: no message handler configured")

	// ErrUnknownChannel indicates a message arrived from a channel that
	// has no registered sink.
	ErrUnknownChannel = errors.New("router: unknown channel")
)
