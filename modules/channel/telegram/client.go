package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes caps the size of a decoded Bot API response.
const maxResponseBytes = 10 << 20

// Client calls the Telegram Bot API methods parrot needs. Every method is a
// JSON POST to <api url>/bot<token>/<method>.
type Client struct {
	endpoint string
	http     *http.Client

	// retries is how many times a rate-limited call is repeated.
	retries int
	// backoff is the first wait when the API gives no retry_after.
	backoff time.Duration
}

// NewClient returns a client for the bot identified by token.
func NewClient(token, apiURL string) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(apiURL, "/") + "/bot" + token + "/",
		// Long polls hold the request for up to 50s.
		http:    &http.Client{Timeout: 90 * time.Second},
		retries: 2,
		backoff: time.Second,
	}
}

// envelope is the wrapper around every Bot API response.
type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (e *envelope) apiError() *APIError {
	err := &APIError{Code: e.ErrorCode, Description: e.Description}
	if e.Parameters != nil {
		err.RetryAfter = e.Parameters.RetryAfter
	}
	return err
}

// call invokes method and decodes its result into out, which may be nil.
// A rate-limited call is repeated after the delay the API asks for, at most
// c.retries times. Any other failure is returned as is.
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("telegram: encoding %s: %w", method, err)
		}
	}

	delay := c.backoff
	for attempt := 0; ; attempt++ {
		env, err := c.post(ctx, method, body)
		if err != nil {
			return err
		}
		if env.OK {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(env.Result, out); err != nil {
				return fmt.Errorf("telegram: decoding %s result: %w", method, err)
			}
			return nil
		}

		apiErr := env.apiError()
		if apiErr.Code != http.StatusTooManyRequests || attempt >= c.retries {
			return apiErr
		}
		if apiErr.RetryAfter > 0 {
			delay = time.Duration(apiErr.RetryAfter) * time.Second
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
}

// post performs one HTTP round trip and decodes the envelope.
func (c *Client) post(ctx context.Context, method string, body []byte) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: building %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error repeats the request URL, which embeds the token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("telegram: %s: decoding response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	return &env, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetUpdatesRequest holds the getUpdates parameters.
type GetUpdatesRequest struct {
	Offset         int      `json:"offset,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// SetWebhookRequest holds the setWebhook parameters.
type SetWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

type textRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id,omitempty"`
	Text      string `json:"text"`
}

type chatActionRequest struct {
	ChatID int64  `json:"chat_id"`
	Action string `json:"action"`
}

// GetMe returns the bot account. It doubles as a token check.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUpdates long-polls for updates newer than req.Offset.
func (c *Client) GetUpdates(ctx context.Context, req GetUpdatesRequest) ([]Update, error) {
	var updates []Update
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SetWebhook makes Telegram push updates to req.URL.
func (c *Client) SetWebhook(ctx context.Context, req SetWebhookRequest) error {
	return c.call(ctx, "setWebhook", req, nil)
}

// DeleteWebhook removes the webhook. getUpdates is refused while one is set.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", nil, nil)
}

// SendMessage posts text to a chat as plain text.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (*Message, error) {
	var m Message
	if err := c.call(ctx, "sendMessage", textRequest{ChatID: chatID, Text: text}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EditMessageText replaces the text of a message the bot sent.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	return c.call(ctx, "editMessageText", textRequest{ChatID: chatID, MessageID: messageID, Text: text}, nil)
}

// SendChatAction shows a chat action such as "typing" for a few seconds.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	return c.call(ctx, "sendChatAction", chatActionRequest{ChatID: chatID, Action: action}, nil)
}
