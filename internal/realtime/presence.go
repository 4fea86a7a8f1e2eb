package realtime

import "sync"

// Presence maps online subjects to their active connection. One handle per
// subject: a reconnect replaces the previous binding, and Unbind only removes
// the entry when it still points at the departing connection, so a disconnect
// from a stale connection cannot clobber a newer one.
//
// Entries live in process memory only. Losing them on restart is acceptable:
// presence feeds best-effort live delivery, never stored-data correctness.
type Presence struct {
	mu       sync.RWMutex
	subjects map[string]*Client
}

// NewPresence constructs an empty Presence registry.
func NewPresence() *Presence {
	return &Presence{subjects: make(map[string]*Client)}
}

// Bind records c as subject's active connection, replacing any previous one.
func (p *Presence) Bind(subject string, c *Client) {
	p.mu.Lock()
	p.subjects[subject] = c
	p.mu.Unlock()
}

// Unbind removes the binding for subject, but only if it still refers to c.
func (p *Presence) Unbind(subject string, c *Client) {
	p.mu.Lock()
	if p.subjects[subject] == c {
		delete(p.subjects, subject)
	}
	p.mu.Unlock()
}

// Get returns subject's active connection, if any.
func (p *Presence) Get(subject string) (*Client, bool) {
	p.mu.RLock()
	c, ok := p.subjects[subject]
	p.mu.RUnlock()
	return c, ok
}

// Online reports whether subject currently has an active connection.
func (p *Presence) Online(subject string) bool {
	_, ok := p.Get(subject)
	return ok
}
