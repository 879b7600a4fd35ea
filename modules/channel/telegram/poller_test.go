package telegram

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/parrot/pkg/message"
)

// collector is an inbox that records delivered messages.
type collector struct {
	mu   sync.Mutex
	msgs []message.InboundMessage
	err  error
}

func (c *collector) inbox(msg message.InboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return c.err
}

func (c *collector) received() []message.InboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message.InboundMessage(nil), c.msgs...)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testUpdate(id int, userID int64, text string) Update {
	return Update{
		UpdateID: id,
		Message: &Message{
			MessageID: id * 10,
			From:      &User{ID: userID, FirstName: "Alice", Username: "alice"},
			Chat:      Chat{ID: 200, Type: "private"},
			Text:      text,
			Date:      1700000000,
		},
	}
}

// serveBatches answers getUpdates with each batch in turn, then with empty
// results.
func serveBatches(t *testing.T, api *fakeBotAPI, batches ...[]Update) {
	var n atomic.Int32
	api.handle("getUpdates", func(w http.ResponseWriter, _ map[string]any) {
		i := int(n.Add(1)) - 1
		if i < len(batches) {
			writeJSON(t, w, okReply(batches[i]))
			return
		}
		writeJSON(t, w, okReply([]Update{}))
	})
}

func TestPoller_DeliversAndAdvancesOffset(t *testing.T) {
	api := newFakeBotAPI(t)
	serveBatches(t, api, []Update{testUpdate(1, 100, "hello"), testUpdate(2, 100, "again")})

	c := &collector{}
	p := newPoller(newTestClient(api), newTestIntake(c.inbox), 0, []string{"message"})
	p.start()
	waitUntil(t, func() bool { return len(api.callsTo("getUpdates")) >= 2 })
	p.stop()

	got := c.received()
	if len(got) != 2 || got[0].Text != "hello" || got[1].Text != "again" {
		t.Fatalf("received = %+v", got)
	}
	if got[0].Channel != "telegram" {
		t.Errorf("Channel = %q, want telegram", got[0].Channel)
	}

	calls := api.callsTo("getUpdates")
	if _, ok := calls[0].Body["offset"]; ok {
		t.Errorf("first poll should not send an offset: %v", calls[0].Body)
	}
	if calls[1].Body["offset"] != float64(3) {
		t.Errorf("second offset = %v, want 3", calls[1].Body["offset"])
	}
	if allowed, _ := calls[0].Body["allowed_updates"].([]any); len(allowed) != 1 || allowed[0] != "message" {
		t.Errorf("allowed_updates = %v", calls[0].Body["allowed_updates"])
	}
}

func TestPoller_AppliesAllowList(t *testing.T) {
	api := newFakeBotAPI(t)
	serveBatches(t, api, []Update{testUpdate(1, 999, "let me in"), testUpdate(2, 100, "hi")})

	c := &collector{}
	p := newPoller(newTestClient(api), newTestIntake(c.inbox, "100"), 0, nil)
	p.start()
	waitUntil(t, func() bool { return len(api.callsTo("getUpdates")) >= 2 })
	p.stop()

	got := c.received()
	if len(got) != 1 || got[0].Sender.ID != "100" {
		t.Errorf("received = %+v, want only sender 100", got)
	}
}

func TestPoller_InboxErrorKeepsPolling(t *testing.T) {
	api := newFakeBotAPI(t)
	serveBatches(t, api, []Update{testUpdate(1, 100, "one")}, []Update{testUpdate(2, 100, "two")})

	c := &collector{err: errors.New("inbox full")}
	p := newPoller(newTestClient(api), newTestIntake(c.inbox), 0, nil)
	p.start()
	waitUntil(t, func() bool { return len(c.received()) == 2 })
	p.stop()
}

func TestPoller_PausesAfterRepeatedErrors(t *testing.T) {
	api := newFakeBotAPI(t)
	api.handle("getUpdates", func(w http.ResponseWriter, _ map[string]any) {
		writeJSON(t, w, errReply(500, "Internal Server Error"))
	})

	p := newPoller(newTestClient(api), newTestIntake((&collector{}).inbox), 0, nil)
	p.retryDelay = time.Millisecond
	p.pause = time.Hour
	p.start()
	waitUntil(t, func() bool { return len(api.callsTo("getUpdates")) >= maxConsecutivePollingErrors })
	time.Sleep(50 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		p.stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop() did not interrupt the pause")
	}

	if got := len(api.callsTo("getUpdates")); got != maxConsecutivePollingErrors {
		t.Errorf("getUpdates calls = %d, want %d", got, maxConsecutivePollingErrors)
	}
}

func TestPoller_StopInterruptsLongPoll(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	p := newPoller(NewClient(testToken, srv.URL), newTestIntake((&collector{}).inbox), 50, nil)
	p.start()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		p.stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop() did not cancel the in-flight getUpdates")
	}
	p.stop()
}

func TestPoller_StopWithoutStart(_ *testing.T) {
	newPoller(nil, nil, 0, nil).stop()
}
