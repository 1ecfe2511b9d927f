package realtime

import (
	"errors"
	"testing"
	"time"

	conv "github.com/virtualhq/agenthq/backend/internal/model/conversation"
)

// fakeConn records writes on a channel so tests can await the async writer.
type fakeConn struct {
	written chan Event
	fail    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{written: make(chan Event, 64)}
}

func (c *fakeConn) WriteJSON(v any) error {
	if c.fail {
		return errors.New("broken pipe")
	}
	c.written <- v.(Event)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func awaitEvent(t *testing.T, c *fakeConn) Event {
	t.Helper()
	select {
	case evt := <-c.written:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	hub := NewHub()
	a, b := newFakeConn(), newFakeConn()
	hub.Register("u1", a)
	hub.Register("u1", b)

	evt := Event{Type: "conversation.message", ConversationID: "c1", Message: conv.Message{ID: "m1", Content: "hi"}}
	hub.Broadcast("u1", evt)

	if got := awaitEvent(t, a); got.Message.ID != "m1" {
		t.Fatalf("connection a got %+v", got)
	}
	if got := awaitEvent(t, b); got.Message.ID != "m1" {
		t.Fatalf("connection b got %+v", got)
	}
}

func TestBroadcastToUnknownUserIsNoop(t *testing.T) {
	hub := NewHub()
	// Must not panic or block.
	hub.Broadcast("ghost", Event{Type: "conversation.message"})
}

func TestBroadcastPreservesOrderPerConnection(t *testing.T) {
	hub := NewHub()
	c := newFakeConn()
	hub.Register("u1", c)

	for i := 0; i < 10; i++ {
		hub.Broadcast("u1", Event{ConversationID: "c1", Message: conv.Message{TokenCount: i}})
	}
	for i := 0; i < 10; i++ {
		if got := awaitEvent(t, c); got.Message.TokenCount != i {
			t.Fatalf("event %d delivered out of order: got %d", i, got.Message.TokenCount)
		}
	}
}

func TestCloseRemovesConnectionAndEmptyEntry(t *testing.T) {
	hub := NewHub()
	a := hub.Register("u1", newFakeConn())
	b := hub.Register("u1", newFakeConn())

	a.Close()
	if n := hub.ConnectionCount("u1"); n != 1 {
		t.Fatalf("expected 1 connection after close, got %d", n)
	}

	b.Close()
	if n := hub.ConnectionCount("u1"); n != 0 {
		t.Fatalf("expected empty entry after last close, got %d", n)
	}

	hub.mu.Lock()
	_, still := hub.users["u1"]
	hub.mu.Unlock()
	if still {
		t.Fatal("user entry not dropped after last connection closed")
	}

	// Closing twice is safe.
	a.Close()
}

func TestFailedWriteDropsConnection(t *testing.T) {
	hub := NewHub()
	c := newFakeConn()
	c.fail = true
	hub.Register("u1", c)

	hub.Broadcast("u1", Event{Type: "conversation.message"})

	deadline := time.Now().Add(time.Second)
	for hub.ConnectionCount("u1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("dead connection was not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
