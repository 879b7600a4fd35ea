package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/flemzord/parrot/internal/gateway"
)

// secretHeader carries the secret_token given to setWebhook.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

var _ gateway.WebhookHandler = (*webhookReceiver)(nil)

// webhookReceiver takes the updates Telegram pushes through the gateway.
// Telegram signs nothing; it echoes the secret token in a header instead.
type webhookReceiver struct {
	in     *intake
	secret []byte
}

func newWebhookReceiver(in *intake, secret string) *webhookReceiver {
	return &webhookReceiver{in: in, secret: []byte(secret)}
}

// HandleWebhook implements gateway.WebhookHandler. The inbox only enqueues,
// so Telegram is answered without waiting for the reply to be generated.
func (r *webhookReceiver) HandleWebhook(_ context.Context, _ string, body []byte, headers http.Header) error {
	if len(r.secret) > 0 &&
		subtle.ConstantTimeCompare(r.secret, []byte(headers.Get(secretHeader))) != 1 {
		return fmt.Errorf("telegram: webhook secret mismatch: %w", gateway.ErrUnauthorized)
	}

	var u Update
	if err := json.Unmarshal(body, &u); err != nil {
		return fmt.Errorf("telegram: decoding webhook update: %w", err)
	}
	return r.in.accept(&u)
}
