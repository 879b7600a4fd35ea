package openai

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/parrot/internal/provider"
)

func streamFrom(data string) <-chan provider.StreamChunk {
	ch := make(chan provider.StreamChunk, chunkBuffer)
	go readStream(context.Background(), io.NopCloser(strings.NewReader(data)), ch)
	return ch
}

// sse joins events the way a server frames them.
func sse(events ...string) string {
	var b strings.Builder
	for _, e := range events {
		b.WriteString(e)
		b.WriteString("\n\n")
	}
	return b.String()
}

func delta(text string) string {
	return `data: {"choices":[{"delta":{"content":"` + text + `"},"finish_reason":null}]}`
}

func TestReadStream(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantText   string
		wantFinish provider.FinishReason
		wantChunks int
		wantErr    error
		anyErr     bool
	}{
		{
			name:       "content then stop",
			body:       sse(delta("Hello"), delta(" world"), `data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`, "data: [DONE]"),
			wantText:   "Hello world",
			wantFinish: provider.FinishReasonStop,
			wantChunks: 3,
		},
		{
			name:       "nothing after DONE",
			body:       sse(delta("Hi"), "data: [DONE]", delta("ignored")),
			wantText:   "Hi",
			wantChunks: 1,
		},
		{
			name:       "EOF without DONE",
			body:       delta("partial") + "\n",
			wantText:   "partial",
			wantChunks: 1,
		},
		{
			name:       "comments and other fields",
			body:       ": keep-alive\n\nevent: message\nid: 1\n" + sse(delta("ok"), "data:", "data: [DONE]"),
			wantText:   "ok",
			wantChunks: 1,
		},
		{
			name: "role-only and empty choices",
			body: sse(`data: {"choices":[{"delta":{"role":"assistant"},"finish_reason":null}]}`, `data: {"choices":[]}`, "data: [DONE]"),
		},
		{
			name:       "content with finish reason",
			body:       sse(`data: {"choices":[{"delta":{"content":"end"},"finish_reason":"length"}]}`, "data: [DONE]"),
			wantText:   "end",
			wantFinish: provider.FinishReasonLength,
			wantChunks: 1,
		},
		{
			name:       "multibyte",
			body:       sse(delta("Ça va? 🤩"), "data: [DONE]"),
			wantText:   "Ça va? 🤩",
			wantChunks: 1,
		},
		{
			name:       "malformed event stops the stream",
			body:       sse(delta("a"), "data: {not json}", delta("b")),
			wantText:   "a",
			wantChunks: 2,
			anyErr:     true,
		},
		{
			name:       "in-band error",
			body:       sse(`data: {"error":{"message":"The server had an error","type":"server_error"}}`),
			wantChunks: 1,
			wantErr:    provider.ErrProviderDown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				text   strings.Builder
				finish provider.FinishReason
				chunks int
				err    error
			)
			for c := range streamFrom(tt.body) {
				chunks++
				text.Write(c.Data)
				if c.FinishReason != "" {
					finish = c.FinishReason
				}
				if c.Err != nil && err == nil {
					err = c.Err
				}
			}

			if text.String() != tt.wantText {
				t.Errorf("text = %q, want %q", text.String(), tt.wantText)
			}
			if finish != tt.wantFinish {
				t.Errorf("finish = %q, want %q", finish, tt.wantFinish)
			}
			if chunks != tt.wantChunks {
				t.Errorf("chunks = %d, want %d", chunks, tt.wantChunks)
			}
			switch {
			case tt.wantErr != nil && !errors.Is(err, tt.wantErr):
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			case tt.anyErr && err == nil:
				t.Error("expected an error chunk")
			case tt.wantErr == nil && !tt.anyErr && err != nil:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// blockingBody blocks every Read until closed.
type blockingBody struct {
	closed chan struct{}
}

func (b *blockingBody) Read([]byte) (int, error) {
	<-b.closed
	return 0, io.ErrClosedPipe
}

func (b *blockingBody) Close() error {
	select {
	case <-b.closed:
	default:
		close(b.closed)
	}
	return nil
}

func TestReadStream_CancelUnblocksRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan provider.StreamChunk, chunkBuffer)
	go readStream(ctx, &blockingBody{closed: make(chan struct{})}, ch)

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
		t.Fatal("readStream did not return after cancel")
	}
}

func TestMapFinishReason(t *testing.T) {
	s := func(v string) *string { return &v }
	tests := []struct {
		in   *string
		want provider.FinishReason
	}{
		{nil, ""},
		{s("stop"), provider.FinishReasonStop},
		{s("length"), provider.FinishReasonLength},
		{s("content_filter"), provider.FinishReasonFiltering},
		{s("tool_calls"), provider.FinishReason("tool_calls")},
	}
	for _, tt := range tests {
		if got := mapFinishReason(tt.in); got != tt.want {
			t.Errorf("mapFinishReason(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewChatRequest(t *testing.T) {
	cfgTemp, reqTemp := 0.2, 0.9
	cfg := Config{Model: "gpt-3.5-turbo", MaxTokens: 500, Temperature: &cfgTemp}
	msgs := []provider.LLMMessage{
		{Role: provider.MessageRoleSystem, Content: "persona"},
		{Role: provider.MessageRoleUser, Content: "hi"},
	}

	got := newChatRequest(cfg, provider.CompletionRequest{Messages: msgs})
	if got.MaxTokens != 500 || *got.Temperature != 0.2 || !got.Stream {
		t.Errorf("defaults not applied: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hi" {
		t.Errorf("messages = %+v", got.Messages)
	}

	got = newChatRequest(cfg, provider.CompletionRequest{Messages: msgs, MaxTokens: 42, Temperature: &reqTemp})
	if got.MaxTokens != 42 || *got.Temperature != 0.9 {
		t.Errorf("overrides not applied: max_tokens=%d temperature=%v", got.MaxTokens, *got.Temperature)
	}
}
