package telegram

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf16"

	"github.com/flemzord/parrot/internal/channel"
)

// SendMessage implements channel.Sink.
func (t *Telegram) SendMessage(ctx context.Context, chatID, text string) (channel.MessageRef, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return channel.MessageRef{}, err
	}
	sent, err := t.client.SendMessage(ctx, id, t.fit(text))
	if err != nil {
		return channel.MessageRef{}, err
	}
	return channel.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(sent.MessageID)}, nil
}

// EditMessage implements channel.Sink. An edit that would not change the
// message is not an error.
func (t *Telegram) EditMessage(ctx context.Context, ref channel.MessageRef, text string) error {
	id, err := parseChatID(ref.ChatID)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return fmt.Errorf("telegram: invalid message ID %q: %w", ref.MessageID, err)
	}

	err = t.client.EditMessageText(ctx, id, msgID, t.fit(text))
	if isNotModified(err) {
		return nil
	}
	return err
}

// SendActivity implements channel.Sink.
func (t *Telegram) SendActivity(ctx context.Context, chatID string, activity channel.Activity) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	return t.client.SendChatAction(ctx, id, string(activity))
}

// fit truncates text to the configured message length.
func (t *Telegram) fit(text string) string {
	limit := t.config.MaxMessageLength
	if limit <= 0 {
		limit = maxTextLength
	}
	out := truncateUTF16(text, limit)
	if len(out) < len(text) && t.logger != nil {
		t.logger.Warn("message text truncated", "limit", limit, "bytes", len(text))
	}
	return out
}

// truncateUTF16 cuts s after at most limit UTF-16 code units, on a rune
// boundary. Telegram measures message length in UTF-16 code units.
func truncateUTF16(s string, limit int) string {
	units := 0
	for i, r := range s {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > limit {
			return s[:i]
		}
		units += n
	}
	return s
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chat ID %q: %w", chatID, err)
	}
	return id, nil
}
