package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/parrot/internal/provider"
)

// statusError turns a non-2xx answer into an error wrapping the matching
// provider sentinel. Statuses without a sentinel are permanent failures.
func statusError(status int, body []byte) error {
	var parsed errorBody
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}

	var sentinel error
	switch {
	case status == http.StatusTooManyRequests:
		sentinel = provider.ErrRateLimit
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		sentinel = provider.ErrAuthentication
	case status == http.StatusBadRequest && contextExceeded(parsed.Error, msg):
		sentinel = provider.ErrContextLength
	case status >= http.StatusInternalServerError:
		sentinel = provider.ErrProviderDown
	default:
		return fmt.Errorf("openai: HTTP %d: %s", status, msg)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func contextExceeded(detail errorDetail, msg string) bool {
	return detail.Code == "context_length_exceeded" ||
		strings.Contains(strings.ToLower(msg), "context length")
}

// transportError classifies a failure to reach the API. Cancellation is
// returned untouched so callers can tell it apart.
func transportError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isNetError(err):
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	default:
		return fmt.Errorf("openai: %w", err)
	}
}

func isNetError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne)
}
