// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/flemzord/parrot/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// Set the Func fields to control behavior. Unset funcs panic on call.
// All methods are safe for concurrent use.
type MockProvider struct {
	StreamFunc      func(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error)
	ModelNameFunc   func() string
	HealthCheckFunc func(ctx context.Context) error

	mu          sync.Mutex
	StreamCalls int
	HealthCalls int
	Requests    []provider.CompletionRequest
}

// Stream delegates to StreamFunc, tracking the call count and request.
func (m *MockProvider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	m.mu.Lock()
	m.StreamCalls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	return m.StreamFunc(ctx, req)
}

// ModelName delegates to ModelNameFunc, defaulting to "mock".
func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc == nil {
		return "mock"
	}
	return m.ModelNameFunc()
}

// HealthCheck delegates to HealthCheckFunc and tracks call count.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.HealthCalls++
	m.mu.Unlock()
	return m.HealthCheckFunc(ctx)
}

// LastRequest returns the most recent request passed to Stream.
func (m *MockProvider) LastRequest() (provider.CompletionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return provider.CompletionRequest{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

// Chunks returns a closed channel that yields one chunk per fragment.
func Chunks(fragments ...string) <-chan provider.StreamChunk {
	ch := make(chan provider.StreamChunk, len(fragments))
	for _, f := range fragments {
		ch <- provider.StreamChunk{Data: []byte(f)}
	}
	close(ch)
	return ch
}

// Bytes is like Chunks but takes raw byte slices, so tests can split
// multi-byte characters across chunks.
func Bytes(fragments ...[]byte) <-chan provider.StreamChunk {
	ch := make(chan provider.StreamChunk, len(fragments))
	for _, f := range fragments {
		ch <- provider.StreamChunk{Data: f}
	}
	close(ch)
	return ch
}

// Fragments returns a StreamFunc that streams the given fragments.
func Fragments(fragments ...string) func(context.Context, provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	return func(context.Context, provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
		return Chunks(fragments...), nil
	}
}

// Interface guards.
var (
	_ provider.Provider      = (*MockProvider)(nil)
	_ provider.HealthChecker = (*MockProvider)(nil)
)
