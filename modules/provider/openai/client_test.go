package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/parrot/internal/provider"
)

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := &Provider{
		config: Config{
			Model:   "gpt-3.5-turbo",
			BaseURL: srv.URL,
		},
		apiKey: "sk-test",
		client: srv.Client(),
	}
	p.config.defaults()
	return p
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func readRequestBody(t *testing.T, r *http.Request) chatRequest {
	t.Helper()
	body, _ := io.ReadAll(r.Body)
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Errorf("invalid request body: %v", err)
	}
	return req
}

func writeSSE(t *testing.T, w http.ResponseWriter, chunks []string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)

	for _, c := range chunks {
		if _, err := w.Write([]byte(c + "\n\n")); err != nil {
			t.Errorf("failed to write SSE chunk: %v", err)
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// collect drains ch and returns the concatenated data, the last finish
// reason and the first error.
func collect(ch <-chan provider.StreamChunk) (string, provider.FinishReason, error) {
	var data []byte
	var finish provider.FinishReason
	var firstErr error
	for chunk := range ch {
		data = append(data, chunk.Data...)
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
		if chunk.Err != nil && firstErr == nil {
			firstErr = chunk.Err
		}
	}
	return string(data), finish, firstErr
}

func TestStream_Success(t *testing.T) {
	headers := make(chan http.Header, 1)
	reqs := make(chan chatRequest, 1)
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		headers <- r.Header.Clone()
		reqs <- readRequestBody(t, r)
		writeSSE(t, w, []string{
			`data: {"choices":[{"delta":{"role":"assistant"},"finish_reason":null}]}`,
			`data: {"choices":[{"delta":{"content":"Bonjour"},"finish_reason":null}]}`,
			`data: {"choices":[{"delta":{"content":", mon ami"},"finish_reason":null}]}`,
			`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			`data: [DONE]`,
		})
	}))

	ch, err := p.Stream(context.Background(), provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleSystem, Content: "You are Napoleon."},
			{Role: provider.MessageRoleUser, Content: "Hello"},
		},
	})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	text, finish, err := collect(ch)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if text != "Bonjour, mon ami" {
		t.Errorf("text = %q", text)
	}
	if finish != provider.FinishReasonStop {
		t.Errorf("finish = %q, want stop", finish)
	}

	got, header := <-reqs, <-headers
	if got.Model != "gpt-3.5-turbo" || !got.Stream {
		t.Errorf("model/stream = %q/%v", got.Model, got.Stream)
	}
	if got.MaxTokens != 500 {
		t.Errorf("max_tokens = %d, want config default 500", got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "Hello" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if header.Get("Authorization") != "Bearer sk-test" {
		t.Errorf("Authorization = %q", header.Get("Authorization"))
	}
	if header.Get("Accept") != "text/event-stream" {
		t.Errorf("Accept = %q", header.Get("Accept"))
	}
}

func TestStream_RequestOverrides(t *testing.T) {
	reqs := make(chan chatRequest, 1)
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- readRequestBody(t, r)
		writeSSE(t, w, []string{`data: [DONE]`})
	}))
	configTemp := 0.2
	p.config.Temperature = &configTemp

	reqTemp := 0.9
	ch, err := p.Stream(context.Background(), provider.CompletionRequest{
		Messages:    []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
		MaxTokens:   42,
		Temperature: &reqTemp,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _, _ = collect(ch)

	got := <-reqs
	if got.MaxTokens != 42 {
		t.Errorf("max_tokens = %d, want 42", got.MaxTokens)
	}
	if got.Temperature == nil || *got.Temperature != 0.9 {
		t.Errorf("temperature = %v, want 0.9", got.Temperature)
	}
}

func TestStream_ConfigTemperature(t *testing.T) {
	reqs := make(chan chatRequest, 1)
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- readRequestBody(t, r)
		writeSSE(t, w, []string{`data: [DONE]`})
	}))
	configTemp := 0.2
	p.config.Temperature = &configTemp

	ch, err := p.Stream(context.Background(), provider.CompletionRequest{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _, _ = collect(ch)

	got := <-reqs
	if got.Temperature == nil || *got.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", got.Temperature)
	}
}

func TestStream_CustomHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		writeSSE(t, w, []string{`data: [DONE]`})
	}))
	p.config.Headers = map[string]string{
		"OpenAI-Organization": "org-123",
		"Authorization":       "Bearer overridden",
	}

	ch, err := p.Stream(context.Background(), provider.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	_, _, _ = collect(ch)

	header := <-headers
	if header.Get("OpenAI-Organization") != "org-123" {
		t.Errorf("OpenAI-Organization = %q", header.Get("OpenAI-Organization"))
	}
	if header.Get("Authorization") != "Bearer sk-test" {
		t.Errorf("Authorization = %q, the configured key must win", header.Get("Authorization"))
	}
}

func TestStream_HTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limit", 429, `{"error":{"message":"Rate limit reached"}}`, provider.ErrRateLimit},
		{"unauthorized", 401, `{"error":{"message":"Incorrect API key"}}`, provider.ErrAuthentication},
		{"forbidden", 403, `{"error":{"message":"Country not supported"}}`, provider.ErrAuthentication},
		{"server error", 500, `{"error":{"message":"boom"}}`, provider.ErrProviderDown},
		{"bad gateway", 502, `<html>bad gateway</html>`, provider.ErrProviderDown},
		{"context length", 400, `{"error":{"message":"too long","code":"context_length_exceeded"}}`, provider.ErrContextLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			ch, err := p.Stream(context.Background(), provider.CompletionRequest{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Stream() error = %v, want %v", err, tt.want)
			}
			if ch != nil {
				t.Error("channel should be nil on error")
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("calls = %d, want 1 (no retries)", n)
			}
		})
	}
}

func TestStream_OtherClientError(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(t, w, map[string]any{"error": map[string]string{"message": "model not found"}})
	}))

	_, err := p.Stream(context.Background(), provider.CompletionRequest{})
	if err == nil || provider.IsTransient(err) {
		t.Fatalf("Stream() error = %v, want permanent error", err)
	}
	if got := err.Error(); got != "openai: HTTP 404: model not found" {
		t.Errorf("error = %q", got)
	}
}

func TestStream_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := &Provider{config: Config{BaseURL: url}, apiKey: "sk-test", client: &http.Client{}}
	_, err := p.Stream(context.Background(), provider.CompletionRequest{})
	if !errors.Is(err, provider.ErrProviderDown) {
		t.Errorf("Stream() error = %v, want ErrProviderDown", err)
	}
}

func TestStream_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, []string{`data: {"choices":[{"delta":{"content":"Hi"},"finish_reason":null}]}`})
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Stream(ctx, provider.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}

	first := <-ch
	if string(first.Data) != "Hi" {
		t.Fatalf("first chunk = %q", first.Data)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream channel not closed after cancel")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"ok", http.StatusOK, nil},
		{"unauthorized", http.StatusUnauthorized, provider.ErrAuthentication},
		{"down", http.StatusServiceUnavailable, provider.ErrProviderDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/models" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer sk-test" {
					t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
				}
				w.WriteHeader(tt.status)
				writeJSON(t, w, map[string]any{"data": []any{}})
			}))

			err := p.HealthCheck(context.Background())
			if tt.want == nil {
				if err != nil {
					t.Errorf("HealthCheck() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("HealthCheck() error = %v, want %v", err, tt.want)
			}
		})
	}
}
