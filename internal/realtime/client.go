package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-servicehub-backend/internal/auth"
)

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second
	// pongWait is how long to wait for a pong before considering the peer gone.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxFrameBytes caps inbound frames; chat messages are small.
	maxFrameBytes = 16 << 10
	// sendBuffer is the per-connection outbound queue length.
	sendBuffer = 64
)

// Client is one authenticated websocket connection. Reads happen on the
// readPump goroutine, writes are funneled through the send channel into the
// writePump goroutine, so the underlying connection never sees concurrent
// writers.
type Client struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn

	// mu guards send and closed. Hub.Broadcast and the notifiers enqueue
	// from arbitrary goroutines while readPump tears the connection down,
	// so every send must be paired with the closed check under the same
	// lock or a late frame races the close of the channel.
	mu     sync.Mutex
	send   chan []byte
	closed bool

	gw *Gateway
}

// Subject returns the authenticated subject id for this connection.
func (c *Client) Subject() string { return c.identity.Subject }

// Role returns the authenticated role for this connection.
func (c *Client) Role() string { return c.identity.Role }

// enqueue offers a frame for delivery; after close it is a no-op. A full
// queue means the peer is too slow to keep up; the connection is dropped
// rather than letting one consumer stall the hub. The durable message store
// stays the source of truth, so the peer recovers everything on rejoin.
func (c *Client) enqueue(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		log.Warn().
			Str("subject", c.identity.Subject).
			Msg("realtime: send queue full, dropping connection")
		c.closeLocked()
	}
}

// send an event frame; marshal errors are impossible for our payload types
// but logged anyway.
func (c *Client) emit(event string, data any) {
	frame, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("realtime: marshal frame")
		return
	}
	c.enqueue(frame)
}

// close shuts the send channel exactly once, which terminates writePump and
// closes the websocket. Safe to call from any goroutine and at any point
// relative to enqueue.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// closeLocked requires c.mu to be held.
func (c *Client) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump consumes inbound frames until the connection errors or closes,
// dispatching each to the gateway. Malformed frames produce a scoped
// message_error and leave the connection usable.
func (c *Client) readPump() {
	defer func() {
		c.gw.disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("subject", c.identity.Subject).Msg("realtime: read")
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			log.Warn().Err(err).Str("subject", c.identity.Subject).Msg("realtime: malformed frame")
			c.emit(EventMessageError, ErrorPayload{Error: "malformed frame"})
			continue
		}
		c.gw.dispatch(c, in)
	}
}

// writePump drains the send channel to the peer and keeps the connection
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
