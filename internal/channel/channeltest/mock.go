// Package channeltest provides test doubles for the channel package.
package channeltest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/flemzord/parrot/internal/channel"
	"github.com/flemzord/parrot/internal/core"
	"github.com/flemzord/parrot/pkg/message"
)

// Op names a Sink operation.
type Op string

// Sink operations recorded by MockSink.
const (
	OpSend     Op = "send"
	OpEdit     Op = "edit"
	OpActivity Op = "activity"
)

// Call is one recorded Sink invocation.
type Call struct {
	Op        Op
	ChatID    string
	MessageID string
	Text      string
	At        time.Time
}

// MockSink records every call it receives. Message IDs are allocated
// sequentially starting at 1. Set the Func fields to inject failures.
// All methods are safe for concurrent use.
type MockSink struct {
	SendFunc     func(chatID, text string) error
	EditFunc     func(ref channel.MessageRef, text string) error
	ActivityFunc func(chatID string, activity channel.Activity) error

	mu     sync.Mutex
	calls  []Call
	nextID int
}

// SendMessage records the call and returns a fresh ref.
func (m *MockSink) SendMessage(_ context.Context, chatID, text string) (channel.MessageRef, error) {
	if m.SendFunc != nil {
		if err := m.SendFunc(chatID, text); err != nil {
			return channel.MessageRef{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := strconv.Itoa(m.nextID)
	m.calls = append(m.calls, Call{Op: OpSend, ChatID: chatID, MessageID: id, Text: text, At: time.Now()})
	return channel.MessageRef{ChatID: chatID, MessageID: id}, nil
}

// EditMessage records the call.
func (m *MockSink) EditMessage(_ context.Context, ref channel.MessageRef, text string) error {
	if m.EditFunc != nil {
		if err := m.EditFunc(ref, text); err != nil {
			return err
		}
	}
	m.record(Call{Op: OpEdit, ChatID: ref.ChatID, MessageID: ref.MessageID, Text: text, At: time.Now()})
	return nil
}

// SendActivity records the call.
func (m *MockSink) SendActivity(_ context.Context, chatID string, activity channel.Activity) error {
	if m.ActivityFunc != nil {
		if err := m.ActivityFunc(chatID, activity); err != nil {
			return err
		}
	}
	m.record(Call{Op: OpActivity, ChatID: chatID, Text: string(activity), At: time.Now()})
	return nil
}

func (m *MockSink) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Calls returns a copy of all recorded calls in order.
func (m *MockSink) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Call, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// CallsOf returns the recorded calls of the given operation.
func (m *MockSink) CallsOf(op Op) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Texts returns the text of every send and edit, in order.
func (m *MockSink) Texts() []string {
	var out []string
	for _, c := range m.Calls() {
		if c.Op == OpSend || c.Op == OpEdit {
			out = append(out, c.Text)
		}
	}
	return out
}

// LastText returns the most recent text sent or edited into chatID.
func (m *MockSink) LastText(chatID string) string {
	calls := m.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		c := calls[i]
		if c.ChatID == chatID && (c.Op == OpSend || c.Op == OpEdit) {
			return c.Text
		}
	}
	return ""
}

// Reset clears recorded calls.
func (m *MockSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// MockChannel is a Channel backed by a MockSink. Inbound messages are
// injected with SimulateMessage.
type MockChannel struct {
	*MockSink
	name string

	mu    sync.Mutex
	inbox func(msg message.InboundMessage) error
}

// NewMockChannel creates a MockChannel registered as "channel.<name>".
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{MockSink: &MockSink{}, name: name}
}

// ModuleInfo implements core.Module.
func (m *MockChannel) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID("channel." + m.name),
		New: func() core.Module { return NewMockChannel(m.name) },
	}
}

// SetInbox stores the inbox callback provided by the router.
func (m *MockChannel) SetInbox(fn func(msg message.InboundMessage) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = fn
}

// SimulateMessage tags msg with the channel name and pushes it into the
// inbox. It returns channel.ErrNoInbox if SetInbox has not been called.
func (m *MockChannel) SimulateMessage(msg message.InboundMessage) error {
	m.mu.Lock()
	inbox := m.inbox
	m.mu.Unlock()

	if inbox == nil {
		return channel.ErrNoInbox
	}
	msg.Channel = m.name
	return inbox(msg)
}

// Interface guards.
var (
	_ channel.Sink    = (*MockSink)(nil)
	_ channel.Channel = (*MockChannel)(nil)
)
