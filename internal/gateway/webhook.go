package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// SignatureHeader carries "sha256=<hex hmac of the body>" for sources that
// are protected by a shared secret.
const SignatureHeader = "X-Signature-256"

const defaultMaxBody = 1 << 20

// ErrUnauthorized is returned by a WebhookHandler that rejects the caller.
// The dispatcher answers 401 for it.
var ErrUnauthorized = errors.New("gateway: webhook unauthorized")

// WebhookHandler consumes one webhook delivery. It runs on the request
// goroutine, so it should hand the payload off rather than process it.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error
}

// WebhookHandlerFunc turns a plain function into a WebhookHandler.
type WebhookHandlerFunc func(ctx context.Context, source string, body []byte, headers http.Header) error

// HandleWebhook calls f.
func (f WebhookHandlerFunc) HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error {
	return f(ctx, source, body, headers)
}

// route is what the dispatcher knows about one source.
type route struct {
	handler WebhookHandler
	secret  []byte
}

// WebhookDispatcher serves POST /webhooks/{source}. A source only answers
// once a handler registered for it.
type WebhookDispatcher struct {
	logger  *slog.Logger
	maxBody int64

	// configured holds secrets from the gateway config, keyed by source.
	configured map[string]string

	mu     sync.RWMutex
	routes map[string]route
}

// NewWebhookDispatcher returns an empty dispatcher. secrets maps a source to
// the HMAC secret used when Register is called without one.
func NewWebhookDispatcher(logger *slog.Logger, secrets map[string]string) *WebhookDispatcher {
	return &WebhookDispatcher{
		logger:     logger,
		maxBody:    defaultMaxBody,
		configured: secrets,
		routes:     make(map[string]route),
	}
}

// Register binds h to source, replacing any previous handler. An empty
// secret falls back to the configured one; if both are empty the source
// accepts unsigned bodies.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler, secret string) {
	if secret == "" {
		secret = d.configured[source]
	}
	rt := route{handler: h}
	if secret != "" {
		rt.secret = []byte(secret)
	}
	d.set(source, rt)
}

// RegisterUnsigned binds h to source without HMAC checking, even when the
// gateway config holds a secret for it. For senders that authenticate some
// other way, such as Telegram's secret token header.
func (d *WebhookDispatcher) RegisterUnsigned(source string, h WebhookHandler) {
	if d.configured[source] != "" {
		d.logger.Warn("webhook secret ignored, source authenticates itself", "source", source)
	}
	d.set(source, route{handler: h})
}

func (d *WebhookDispatcher) set(source string, rt route) {
	d.mu.Lock()
	d.routes[source] = rt
	d.mu.Unlock()
}

// Unregister drops the handler for source. Later deliveries get 404.
func (d *WebhookDispatcher) Unregister(source string) {
	d.mu.Lock()
	delete(d.routes, source)
	d.mu.Unlock()
}

func (d *WebhookDispatcher) lookup(source string) (route, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rt, ok := d.routes[source]
	return rt, ok
}

// ServeHTTP implements http.Handler. The source comes from the chi route
// parameter "source".
func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	source := chi.URLParam(r, "source")
	if source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}

	rt, ok := d.lookup(source)
	if !ok {
		d.logger.Warn("webhook for unknown source", "source", source)
		http.Error(w, "unknown source", http.StatusNotFound)
		return
	}

	body, status := d.readBody(w, r)
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if !rt.verify(body, r.Header.Get(SignatureHeader)) {
		d.logger.Warn("webhook signature mismatch", "source", source, "remote_addr", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	err := rt.handler.HandleWebhook(r.Context(), source, body, r.Header)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	case errors.Is(err, ErrUnauthorized):
		d.logger.Warn("webhook rejected", "source", source, "remote_addr", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		d.logger.Error("webhook handler failed", "source", source, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// readBody reads at most d.maxBody bytes. A non-zero status means the
// request must be refused with it.
func (d *WebhookDispatcher) readBody(w http.ResponseWriter, r *http.Request) ([]byte, int) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.maxBody))
	if err == nil {
		return body, 0
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, http.StatusRequestEntityTooLarge
	}
	return nil, http.StatusBadRequest
}

// verify reports whether signature matches body. Routes without a secret
// accept anything.
func (rt route) verify(body []byte, signature string) bool {
	if rt.secret == nil {
		return true
	}
	return validateHMAC(body, signature, string(rt.secret))
}

// validateHMAC compares signature with "sha256=" + hex(HMAC-SHA256(secret, body))
// in constant time.
func validateHMAC(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}
