package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/flemzord/parrot/internal/provider"
)

const (
	// maxErrorBody bounds how much of a failed response is kept.
	maxErrorBody = 64 << 10
	chunkBuffer  = 64
)

// do sends an authenticated request and returns the response once its
// status is 2xx. Any other status is read, closed and mapped to an error.
func (p *Provider) do(ctx context.Context, method, path string, payload any, accept string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("openai: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	// Set last so a configured header can never replace the key.
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode/100 != 2 {
		defer func() { _ = resp.Body.Close() }()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(resp.StatusCode, raw)
	}
	return resp, nil
}

// Stream implements provider.Provider. Failures before the first byte are
// returned; later ones arrive as a chunk with Err set. Nothing is retried.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	resp, err := p.do(ctx, http.MethodPost, "/chat/completions", newChatRequest(p.config, req), "text/event-stream")
	if err != nil {
		return nil, err
	}
	ch := make(chan provider.StreamChunk, chunkBuffer)
	go readStream(ctx, resp.Body, ch)
	return ch, nil
}

// HealthCheck implements provider.HealthChecker by listing models, which
// proves the endpoint is up and the key accepted without spending tokens.
func (p *Provider) HealthCheck(ctx context.Context) error {
	resp, err := p.do(ctx, http.MethodGet, "/models", nil, "")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return resp.Body.Close()
}
