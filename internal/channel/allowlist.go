package channel

import (
	"strings"

	"github.com/flemzord/parrot/pkg/message"
)

// AllowList restricts which users and groups may talk to the bot. An empty
// or nil AllowList lets everyone through.
type AllowList struct {
	users  map[string]struct{}
	groups map[string]struct{}
}

// NewAllowList creates an AllowList. User entries match the sender ID or
// username (with or without a leading "@"); group entries match the chat ID.
// Keys are normalized at construction time so IsAllowed does map lookups.
func NewAllowList(users, groups []string) *AllowList {
	a := &AllowList{
		users:  make(map[string]struct{}, len(users)),
		groups: make(map[string]struct{}, len(groups)),
	}
	for _, u := range users {
		if u = normalize(u); u != "" {
			a.users[u] = struct{}{}
		}
	}
	for _, g := range groups {
		if g = normalize(g); g != "" {
			a.groups[g] = struct{}{}
		}
	}
	return a
}

// Open reports whether the list lets everyone through.
func (a *AllowList) Open() bool {
	return a == nil || (len(a.users) == 0 && len(a.groups) == 0)
}

// IsAllowed reports whether the message sender or chat is permitted.
func (a *AllowList) IsAllowed(msg message.InboundMessage) bool {
	if a.Open() {
		return true
	}

	if _, ok := a.users[normalize(msg.Sender.ID)]; ok && msg.Sender.ID != "" {
		return true
	}
	if msg.Sender.Username != "" {
		if _, ok := a.users[normalize(msg.Sender.Username)]; ok {
			return true
		}
	}
	if _, ok := a.groups[normalize(msg.Chat.ID)]; ok && msg.Chat.ID != "" {
		return true
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
