package openai

import "github.com/flemzord/parrot/internal/provider"

// Chat Completions wire format, limited to what a text-only streamed
// completion uses.

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatChunk is one "data:" event of a streamed completion. Some compatible
// servers report failures in-band through Error.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// newChatRequest merges req with the configured defaults. Values set on the
// request win.
func newChatRequest(cfg Config, req provider.CompletionRequest) chatRequest {
	out := chatRequest{
		Model:       cfg.Model,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Stream:      true,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		out.Temperature = req.Temperature
	}
	return out
}

var finishReasons = map[string]provider.FinishReason{
	"stop":           provider.FinishReasonStop,
	"length":         provider.FinishReasonLength,
	"content_filter": provider.FinishReasonFiltering,
}

// mapFinishReason translates finish_reason. Unknown values pass through.
func mapFinishReason(reason *string) provider.FinishReason {
	if reason == nil {
		return ""
	}
	if r, ok := finishReasons[*reason]; ok {
		return r
	}
	return provider.FinishReason(*reason)
}
