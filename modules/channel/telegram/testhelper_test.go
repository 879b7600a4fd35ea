package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testToken = "123456:ABC-DEF_ghijk"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// okReply is a successful Bot API answer carrying result.
func okReply(result any) map[string]any {
	return map[string]any{"ok": true, "result": result}
}

// errReply is a failed Bot API answer.
func errReply(code int, description string) map[string]any {
	return map[string]any{"ok": false, "error_code": code, "description": description}
}

// apiCall is one request received by fakeBotAPI.
type apiCall struct {
	Method string
	Body   map[string]any
}

// fakeBotAPI is an httptest Bot API that records calls. Handlers keyed by
// method name override the default success response.
type fakeBotAPI struct {
	*httptest.Server
	t *testing.T

	mu       sync.Mutex
	calls    []apiCall
	handlers map[string]func(w http.ResponseWriter, body map[string]any)
	nextID   int
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{t: t, handlers: map[string]func(http.ResponseWriter, map[string]any){}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeBotAPI) handle(method string, h func(w http.ResponseWriter, body map[string]any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	if !strings.HasPrefix(r.URL.Path, "/bot"+testToken+"/") {
		f.t.Errorf("unexpected path: %s", r.URL.Path)
	}

	body := map[string]any{}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			f.t.Errorf("decode %s body: %v", method, err)
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Body: body})
	h := f.handlers[method]
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	if h != nil {
		h(w, body)
		return
	}

	switch method {
	case "getMe":
		writeJSON(f.t, w, okReply(User{ID: 1, IsBot: true, FirstName: "Parrot", Username: "parrot_bot"}))
	case "getUpdates":
		writeJSON(f.t, w, okReply([]Update{}))
	case "sendMessage", "editMessageText":
		chatID, _ := body["chat_id"].(float64)
		text, _ := body["text"].(string)
		msgID := id
		if v, ok := body["message_id"].(float64); ok {
			msgID = int(v)
		}
		writeJSON(f.t, w, okReply(Message{MessageID: msgID, Chat: Chat{ID: int64(chatID)}, Text: text}))
	default:
		writeJSON(f.t, w, okReply(true))
	}
}

// callsTo returns the recorded calls of method.
func (f *fakeBotAPI) callsTo(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// methods returns the method names of all recorded calls, in order.
func (f *fakeBotAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Method
	}
	return out
}
