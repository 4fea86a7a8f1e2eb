package realtime

import (
	"sync"
	"testing"
)

func newTestClient(buf int) *Client {
	return &Client{send: make(chan []byte, buf)}
}

func TestHub_JoinLeaveMembers(t *testing.T) {
	h := NewHub()
	a, b := newTestClient(4), newTestClient(4)

	h.Join("r1", a)
	h.Join("r1", b)
	h.Join("r2", a)

	if got := h.Members("r1"); got != 2 {
		t.Fatalf("r1 members = %d, want 2", got)
	}
	if got := h.Members("r2"); got != 1 {
		t.Fatalf("r2 members = %d, want 1", got)
	}

	h.Leave("r1", a)
	if got := h.Members("r1"); got != 1 {
		t.Fatalf("after leave, r1 members = %d", got)
	}
	// Leaving a room never joined is a no-op.
	h.Leave("r9", a)
	h.Leave("r1", a)
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	h := NewHub()
	a := newTestClient(4)
	h.Join("r1", a)
	h.Join("r1", a)
	if got := h.Members("r1"); got != 1 {
		t.Fatalf("double join counted twice: %d", got)
	}
}

func TestHub_LeaveAll(t *testing.T) {
	h := NewHub()
	a, b := newTestClient(4), newTestClient(4)
	h.Join("r1", a)
	h.Join("r2", a)
	h.Join("r2", b)

	h.LeaveAll(a)
	if h.Members("r1") != 0 || h.Members("r2") != 1 {
		t.Fatalf("LeaveAll incomplete: r1=%d r2=%d", h.Members("r1"), h.Members("r2"))
	}
}

func TestHub_BroadcastReachesAllMembers(t *testing.T) {
	h := NewHub()
	a, b, outsider := newTestClient(4), newTestClient(4), newTestClient(4)
	h.Join("r1", a)
	h.Join("r1", b)
	h.Join("r2", outsider)

	h.Broadcast("r1", []byte("ping"))

	for _, c := range []*Client{a, b} {
		select {
		case frame := <-c.send:
			if string(frame) != "ping" {
				t.Fatalf("frame = %q", frame)
			}
		default:
			t.Fatalf("member did not receive broadcast")
		}
	}
	select {
	case <-outsider.send:
		t.Fatalf("outsider received r1 broadcast")
	default:
	}
}

func TestHub_BroadcastToEmptyRoom(t *testing.T) {
	h := NewHub()
	// Must not panic or create the room.
	h.Broadcast("ghost", []byte("x"))
	if h.Members("ghost") != 0 {
		t.Fatalf("broadcast materialized an empty room")
	}
}

func TestHub_BroadcastAfterMemberClosed(t *testing.T) {
	h := NewHub()
	a, b := newTestClient(4), newTestClient(4)
	h.Join("r1", a)
	h.Join("r1", b)

	// a disconnects between the membership snapshot and fan-out. The
	// broadcast must not panic and b must still get the frame.
	a.close()
	h.Broadcast("r1", []byte("ping"))

	select {
	case frame := <-b.send:
		if string(frame) != "ping" {
			t.Fatalf("frame = %q", frame)
		}
	default:
		t.Fatalf("live member did not receive broadcast")
	}

	// Late enqueues and a second close are both no-ops.
	a.enqueue([]byte("late"))
	a.close()
}

func TestHub_BroadcastRacesDisconnect(t *testing.T) {
	h := NewHub()
	for i := 0; i < 500; i++ {
		c := newTestClient(1)
		h.Join("race", c)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Broadcast("race", []byte("a"))
			h.Broadcast("race", []byte("b"))
		}()
		go func() {
			defer wg.Done()
			h.LeaveAll(c)
			c.close()
		}()
		wg.Wait()
	}
	if h.Members("race") != 0 {
		t.Fatalf("room not empty after churn: %d", h.Members("race"))
	}
}

func TestClient_FullQueueDropsConnectionOnce(t *testing.T) {
	c := newTestClient(1)
	c.enqueue([]byte("fits"))
	// Second frame finds the queue full: the client is closed.
	c.enqueue([]byte("overflow"))

	if frame, ok := <-c.send; !ok || string(frame) != "fits" {
		t.Fatalf("buffered frame = %q ok=%v", frame, ok)
	}
	if _, ok := <-c.send; ok {
		t.Fatalf("send channel still open after overflow")
	}

	// Enqueue after the drop stays a no-op.
	c.enqueue([]byte("ghost"))
}

func TestHub_ConcurrentJoinBroadcastLeave(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		c := newTestClient(64)
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Join("busy", c)
			h.Broadcast("busy", []byte("m"))
			h.Leave("busy", c)
		}()
	}
	wg.Wait()
	if h.Members("busy") != 0 {
		t.Fatalf("room not empty after churn: %d", h.Members("busy"))
	}
}
