package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(api *fakeBotAPI) *Client {
	c := NewClient(testToken, api.URL+"/")
	c.backoff = time.Millisecond
	return c
}

func TestClient_GetMe(t *testing.T) {
	api := newFakeBotAPI(t)
	u, err := newTestClient(api).GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error: %v", err)
	}
	if u.Username != "parrot_bot" || !u.IsBot {
		t.Errorf("GetMe() = %+v", u)
	}
	if got := api.methods(); len(got) != 1 || got[0] != "getMe" {
		t.Errorf("calls = %v", got)
	}
}

func TestClient_SendAndEdit(t *testing.T) {
	api := newFakeBotAPI(t)
	c := newTestClient(api)
	ctx := context.Background()

	sent, err := c.SendMessage(ctx, 42, "Hel")
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if sent.Chat.ID != 42 || sent.Text != "Hel" {
		t.Errorf("SendMessage() = %+v", sent)
	}
	if err := c.EditMessageText(ctx, 42, sent.MessageID, "Hello"); err != nil {
		t.Fatalf("EditMessageText() error: %v", err)
	}
	if err := c.SendChatAction(ctx, 42, "typing"); err != nil {
		t.Fatalf("SendChatAction() error: %v", err)
	}

	edit := api.callsTo("editMessageText")[0].Body
	if edit["chat_id"] != float64(42) || edit["message_id"] != float64(sent.MessageID) || edit["text"] != "Hello" {
		t.Errorf("editMessageText body = %v", edit)
	}
	send := api.callsTo("sendMessage")[0].Body
	if _, ok := send["message_id"]; ok {
		t.Errorf("sendMessage should not carry message_id: %v", send)
	}
	if act := api.callsTo("sendChatAction")[0].Body; act["action"] != "typing" {
		t.Errorf("sendChatAction body = %v", act)
	}
}

func TestClient_GetUpdatesRequest(t *testing.T) {
	api := newFakeBotAPI(t)
	api.handle("getUpdates", func(w http.ResponseWriter, _ map[string]any) {
		writeJSON(t, w, okReply([]Update{testUpdate(7, 100, "hi"), testUpdate(8, 100, "there")}))
	})

	updates, err := newTestClient(api).GetUpdates(context.Background(), GetUpdatesRequest{
		Offset:         7,
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		t.Fatalf("GetUpdates() error: %v", err)
	}
	if len(updates) != 2 || updates[1].Message.Text != "there" {
		t.Errorf("GetUpdates() = %+v", updates)
	}

	body := api.callsTo("getUpdates")[0].Body
	if body["offset"] != float64(7) || body["timeout"] != float64(30) {
		t.Errorf("getUpdates body = %v", body)
	}
}

func TestClient_RetriesRateLimit(t *testing.T) {
	api := newFakeBotAPI(t)
	var calls atomic.Int32
	api.handle("getMe", func(w http.ResponseWriter, _ map[string]any) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`))
			return
		}
		writeJSON(t, w, okReply(User{ID: 9, IsBot: true, FirstName: "Parrot"}))
	})

	u, err := newTestClient(api).GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error after retry: %v", err)
	}
	if u.ID != 9 || calls.Load() != 2 {
		t.Errorf("user %d after %d calls, want 9 after 2", u.ID, calls.Load())
	}
}

func TestClient_RateLimitGivesUp(t *testing.T) {
	api := newFakeBotAPI(t)
	api.handle("sendMessage", func(w http.ResponseWriter, _ map[string]any) {
		writeJSON(t, w, errReply(429, "Too Many Requests"))
	})
	c := newTestClient(api)

	_, err := c.SendMessage(context.Background(), 42, "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 429 {
		t.Fatalf("SendMessage() error = %v, want APIError 429", err)
	}
	if n := len(api.callsTo("sendMessage")); n != c.retries+1 {
		t.Errorf("sendMessage attempts = %d, want %d", n, c.retries+1)
	}
}

func TestClient_NoRetryOnOtherErrors(t *testing.T) {
	api := newFakeBotAPI(t)
	api.handle("sendMessage", func(w http.ResponseWriter, _ map[string]any) {
		writeJSON(t, w, errReply(400, "Bad Request: chat not found"))
	})

	_, err := newTestClient(api).SendMessage(context.Background(), 999, "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Description != "Bad Request: chat not found" {
		t.Errorf("Description = %q", apiErr.Description)
	}
	if n := len(api.callsTo("sendMessage")); n != 1 {
		t.Errorf("sendMessage attempts = %d, want 1", n)
	}
}

func TestClient_RetryHonoursContext(t *testing.T) {
	api := newFakeBotAPI(t)
	api.handle("getMe", func(w http.ResponseWriter, _ map[string]any) {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"slow down","parameters":{"retry_after":60}}`))
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestClient(api).GetMe(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetMe() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("retry wait ignored the context")
	}
}

func TestClient_TransportErrorHidesToken(t *testing.T) {
	api := newFakeBotAPI(t)
	c := newTestClient(api)
	api.Close()

	_, err := c.GetMe(context.Background())
	if err == nil {
		t.Fatal("expected an error from a closed server")
	}
	if strings.Contains(err.Error(), testToken) {
		t.Errorf("error leaks the bot token: %v", err)
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	api := newFakeBotAPI(t)
	api.handle("getMe", func(w http.ResponseWriter, _ map[string]any) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := newTestClient(api).GetMe(context.Background())
	if err == nil || !strings.Contains(err.Error(), "HTTP 502") {
		t.Errorf("GetMe() error = %v, want a decode error naming the status", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.defaults()

	if cfg.Mode != "polling" {
		t.Errorf("Mode = %q, want %q", cfg.Mode, "polling")
	}
	if cfg.PollingTimeout != 30 {
		t.Errorf("PollingTimeout = %d, want 30", cfg.PollingTimeout)
	}
	if len(cfg.AllowedUpdates) != 1 || cfg.AllowedUpdates[0] != "message" {
		t.Errorf("AllowedUpdates = %v, want [message]", cfg.AllowedUpdates)
	}
	if cfg.MaxMessageLength != 4096 {
		t.Errorf("MaxMessageLength = %d, want 4096", cfg.MaxMessageLength)
	}
	if cfg.APIURL != "https://api.telegram.org" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}

	custom := Config{Mode: "webhook", PollingTimeout: 60, APIURL: "https://bots.example.com"}
	custom.defaults()
	if custom.Mode != "webhook" || custom.PollingTimeout != 60 || custom.APIURL != "https://bots.example.com" {
		t.Errorf("defaults() overwrote set values: %+v", custom)
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		err  *APIError
		want string
	}{
		{&APIError{Code: 429, Description: "Too Many Requests", RetryAfter: 5}, "telegram: 429 Too Many Requests (retry after 5s)"},
		{&APIError{Code: 400, Description: "Bad Request"}, "telegram: 400 Bad Request"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestIsNotModified(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not modified", &APIError{Code: 400, Description: "Bad Request: message is not modified: same content"}, true},
		{"wrapped", fmt.Errorf("edit: %w", &APIError{Code: 400, Description: "Bad Request: message is not modified"}), true},
		{"other 400", &APIError{Code: 400, Description: "Bad Request: chat not found"}, false},
		{"other code", &APIError{Code: 403, Description: "message is not modified"}, false},
		{"plain error", errors.New("message is not modified"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotModified(tt.err); got != tt.want {
				t.Errorf("isNotModified() = %v, want %v", got, tt.want)
			}
		})
	}
}
