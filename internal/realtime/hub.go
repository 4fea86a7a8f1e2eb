package realtime

import "sync"

// Hub tracks which connections are joined to which rooms. All membership
// mutations are serialized behind one mutex; broadcasting takes a snapshot
// under the read lock and fans out without holding it, so broadcasts to
// different rooms proceed concurrently and a slow consumer never blocks
// membership changes.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join adds c to room, creating the room on first join.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Leave removes c from room. No-op when c is not joined. Empty rooms are
// dropped so the map does not grow with dead keys.
func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// LeaveAll removes c from every room it is joined to. Called on disconnect.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
}

// Members returns the number of connections currently joined to room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast enqueues frame to every connection joined to room, including the
// sender when it is a member. Delivery is per-connection best-effort; see
// Client.enqueue. The snapshot may contain a member that disconnects before
// fan-out reaches it; enqueue tolerates that.
func (h *Hub) Broadcast(room string, frame []byte) {
	h.mu.RLock()
	snapshot := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		c.enqueue(frame)
	}
}
