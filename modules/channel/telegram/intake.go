package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/flemzord/parrot/internal/channel"
	"github.com/flemzord/parrot/pkg/message"
)

// Reasons an update is dropped before reaching the inbox.
var (
	errNoMessage  = errors.New("no message")
	errNoText     = errors.New("not a text message")
	errFromBot    = errors.New("sent by a bot")
	errOtherBot   = errors.New("command addressed to another bot")
	errEditedText = errors.New("edited message")
)

// intake is the path shared by polling and webhook delivery: it converts an
// update, applies the allow list and hands the result to the inbox.
type intake struct {
	inbox   func(message.InboundMessage) error
	allow   *channel.AllowList
	botName string // bot username, for /command@bot addressing
	channel string
	logger  *slog.Logger
}

// accept delivers update to the inbox. Dropped updates are not errors; only
// an inbox failure is returned.
func (in *intake) accept(update *Update) error {
	msg, err := in.convert(update)
	if err != nil {
		in.logger.Debug("skipping update", "update_id", update.UpdateID, "reason", err)
		return nil
	}
	if !in.allow.IsAllowed(msg) {
		in.logger.Debug("update denied by allow list",
			"update_id", update.UpdateID, "sender", msg.Sender.ID, "chat", msg.Chat.ID)
		return nil
	}
	if err := in.inbox(msg); err != nil {
		in.logger.Error("inbox rejected update", "update_id", update.UpdateID, "error", err)
		return err
	}
	return nil
}

// convert maps a new text message to an InboundMessage. Edits, non-text
// messages, messages from bots and commands for other bots are refused.
func (in *intake) convert(update *Update) (message.InboundMessage, error) {
	m := update.Message
	switch {
	case m == nil && update.EditedMessage != nil:
		return message.InboundMessage{}, errEditedText
	case m == nil:
		return message.InboundMessage{}, errNoMessage
	case m.Text == "":
		return message.InboundMessage{}, errNoText
	case m.From != nil && m.From.IsBot:
		return message.InboundMessage{}, errFromBot
	}

	raw, err := json.Marshal(update)
	if err != nil {
		return message.InboundMessage{}, fmt.Errorf("telegram: marshal update: %w", err)
	}
	out := message.InboundMessage{
		ID:        strconv.Itoa(m.MessageID),
		Timestamp: time.Unix(m.Date, 0),
		Channel:   in.channel,
		Sender:    sender(m.From),
		Chat: message.Chat{
			ID:    strconv.FormatInt(m.Chat.ID, 10),
			Type:  chatType(m.Chat.Type),
			Title: m.Chat.Title,
		},
		Text: m.Text,
		Raw:  raw,
	}

	// Only a bot_command entity at offset 0 makes the message a command.
	if len(m.Entities) > 0 && m.Entities[0].Type == "bot_command" && m.Entities[0].Offset == 0 {
		if cmd, ok := message.ParseCommand(m.Text); ok {
			if !cmd.AddressedTo(in.botName) {
				return message.InboundMessage{}, errOtherBot
			}
			out.Command = &cmd
		}
	}
	return out, nil
}

func sender(u *User) message.Sender {
	if u == nil {
		return message.Sender{}
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return message.Sender{
		ID:          strconv.FormatInt(u.ID, 10),
		Username:    u.Username,
		DisplayName: name,
	}
}

func chatType(t string) message.ChatType {
	switch t {
	case "private":
		return message.ChatDM
	case "channel":
		return message.ChatBroadcast
	default:
		return message.ChatGroup
	}
}
