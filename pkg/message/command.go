package message

import (
	"strings"
	"unicode"
)

// Command is a bot command such as "/imitate Napoleon" or
// "/start@parrot_bot".
type Command struct {
	// Name is the command without the leading slash, lower-cased.
	Name string `json:"name"`

	// Bot is the username the command was addressed to, if any.
	Bot string `json:"bot,omitempty"`

	// Args is everything after the command, with surrounding whitespace removed.
	Args string `json:"args,omitempty"`
}

// ParseCommand extracts a command from the start of text.
// It reports false when text does not begin with "/<name>".
func ParseCommand(text string) (Command, bool) {
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}

	head, args, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		// Command followed by a newline or tab instead of a space.
		args = head[i:] + " " + args
		head = head[:i]
	}

	name, bot, _ := strings.Cut(head, "@")
	if name == "" {
		return Command{}, false
	}

	return Command{
		Name: strings.ToLower(name),
		Bot:  bot,
		Args: strings.TrimSpace(args),
	}, true
}

// AddressedTo reports whether the command targets the bot with the given
// username. Commands without an explicit @bot suffix target every bot.
func (c Command) AddressedTo(username string) bool {
	return c.Bot == "" || username == "" || strings.EqualFold(c.Bot, username)
}
