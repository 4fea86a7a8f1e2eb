package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-servicehub-backend/internal/auth"
	"github.com/tbourn/go-servicehub-backend/internal/services"
)

// storeTimeout bounds each store round-trip triggered by a websocket frame.
// No gateway operation holds locks across I/O, so this is the only latency a
// frame can accumulate.
const storeTimeout = 10 * time.Second

// Gateway upgrades websocket connections, authenticates them against the
// identity context, and routes join/send/leave traffic between connections,
// the chat service, and the presence registry.
//
// Per-connection state machine: connecting, authenticated, joined rooms,
// disconnected. Authentication failure is the only fatal error; every later
// problem is reported as a scoped error event and the connection stays
// usable.
type Gateway struct {
	hub      *Hub
	presence *Presence
	chats    *services.ChatService
	verifier *auth.Verifier
	notify   services.Notifier

	upgrader websocket.Upgrader
}

// NewGateway wires a Gateway. notify may be nil, in which case personal
// pings go through the gateway's own local presence registry.
func NewGateway(chats *services.ChatService, verifier *auth.Verifier, notify services.Notifier) *Gateway {
	gw := &Gateway{
		hub:      NewHub(),
		presence: NewPresence(),
		chats:    chats,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from app origins; access control is
			// the bearer token, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if notify == nil {
		notify = &LocalNotifier{Presence: gw.presence}
	}
	gw.notify = notify
	return gw
}

// Hub exposes the room registry (used by tests and wiring).
func (gw *Gateway) Hub() *Hub { return gw.hub }

// Presence exposes the presence registry (used by notifiers and wiring).
func (gw *Gateway) Presence() *Presence { return gw.presence }

// Notifier returns the dispatcher used for personal channel events.
func (gw *Gateway) Notifier() services.Notifier { return gw.notify }

// SetNotifier swaps the personal-channel dispatcher. Call during wiring,
// before the first connection is accepted.
func (gw *Gateway) SetNotifier(n services.Notifier) {
	if n != nil {
		gw.notify = n
	}
}

// HandleWS is the Gin handler for the websocket endpoint. The bearer
// credential travels in the `token` query parameter (browser websocket APIs
// cannot set headers) with an Authorization header fallback.
//
// An invalid credential still upgrades: the peer receives an auth_error event
// before the connection is terminated, matching the gateway contract.
func (gw *Gateway) HandleWS(c *gin.Context) {
	conn, err := gw.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Debug().Err(err).Msg("realtime: upgrade failed")
		return
	}

	token := c.Query("token")
	if token == "" {
		if h := c.GetHeader("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
			token = h[7:]
		}
	}
	identity, err := gw.verifier.Verify(token)
	if err != nil {
		gw.rejectAuth(conn)
		return
	}

	client := &Client{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		gw:       gw,
	}
	gw.presence.Bind(identity.Subject, client)
	log.Info().
		Str("subject", identity.Subject).
		Str("role", identity.Role).
		Msg("realtime: connected")

	go client.writePump()
	go client.readPump()
}

// rejectAuth emits auth_error on a raw connection and closes it.
func (gw *Gateway) rejectAuth(conn *websocket.Conn) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(outbound{Event: EventAuthError, Data: "authentication failed"})
	_ = conn.Close()
}

// dispatch routes one inbound frame. Unknown events get a scoped error; they
// never terminate the connection.
func (gw *Gateway) dispatch(c *Client, in inbound) {
	switch in.Event {
	case EventJoinChat:
		gw.handleJoin(c, in)
	case EventSendMessage:
		gw.handleSend(c, in)
	case EventLeaveChat:
		gw.handleLeave(c, in)
	default:
		c.emit(EventMessageError, ErrorPayload{Error: "unknown event: " + in.Event})
	}
}

// handleJoin resolves the room key, joins the room, and replays the full
// ascending history to the joining connection only.
func (gw *Gateway) handleJoin(c *Client, in inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	roomID, _, err := gw.chats.ResolveRoom(ctx, in.Room)
	if err != nil {
		c.emit(EventHistoryError, ErrorPayload{Room: in.Room, Error: "failed to resolve chat room"})
		return
	}
	gw.hub.Join(roomID, c)
	log.Debug().Str("subject", c.Subject()).Str("room", roomID).Msg("realtime: joined")

	history, err := gw.chats.HistoryAsc(ctx, roomID)
	if err != nil {
		c.emit(EventHistoryError, ErrorPayload{Room: in.Room, Error: "failed to load history"})
		return
	}
	payload := HistoryPayload{Room: in.Room, History: make([]MessagePayload, 0, len(history))}
	for _, m := range history {
		payload.History = append(payload.History, MessagePayload{
			ID:        m.ID,
			Room:      in.Room,
			SenderID:  m.SenderID,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	c.emit(EventChatHistory, payload)
}

// handleSend persists a message and broadcasts it to the resolved room,
// including the sender. Nothing is broadcast unless the write was durable.
// When the chat is linked to a service request, both participants' personal
// channels get a payload-free activity ping so out-of-room UIs can refresh.
func (gw *Gateway) handleSend(c *Client, in inbound) {
	if in.SenderID != c.Subject() {
		log.Warn().
			Str("subject", c.Subject()).
			Str("claimed", in.SenderID).
			Msg("realtime: sender mismatch")
		c.emit(EventMessageError, ErrorPayload{Room: in.Room, Error: "sender does not match connection"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	roomID, chat, err := gw.chats.ResolveRoom(ctx, in.Room)
	if err != nil {
		c.emit(EventMessageError, ErrorPayload{Room: in.Room, Error: "failed to resolve chat room"})
		return
	}
	if chat == nil {
		c.emit(EventMessageError, ErrorPayload{Room: in.Room, Error: "chat room not found"})
		return
	}

	msg, err := gw.chats.Append(ctx, roomID, c.Subject(), in.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			c.emit(EventMessageError, ErrorPayload{Room: in.Room, Error: "invalid message content"})
		case errors.Is(err, services.ErrNotFound):
			c.emit(EventMessageError, ErrorPayload{Room: in.Room, Error: "chat room not found"})
		default:
			log.Error().Err(err).Str("room", roomID).Msg("realtime: append failed")
			c.emit(EventMessageError, ErrorPayload{Room: in.Room, Error: "failed to send message"})
		}
		return
	}

	// The broadcast carries the canonical room id, not the sender's join
	// key: members may have joined via the service request id or the chat
	// id, and one shared frame must correlate for both.
	frame := mustFrame(EventReceiveMessage, MessagePayload{
		ID:        msg.ID,
		Room:      roomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	})
	gw.hub.Broadcast(roomID, frame)

	targets, err := gw.chats.ActivityTargets(ctx, chat)
	if err != nil {
		// Best-effort: the durable message already committed.
		log.Warn().Err(err).Str("room", roomID).Msg("realtime: activity targets")
		return
	}
	for _, subject := range targets {
		gw.notify.NotifyIfOnline(subject, EventNewChatActivity, nil)
	}
}

// handleLeave removes the connection from the resolved room; no-op when the
// connection never joined it.
func (gw *Gateway) handleLeave(c *Client, in inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	roomID, _, err := gw.chats.ResolveRoom(ctx, in.Room)
	if err != nil {
		roomID = in.Room
	}
	gw.hub.Leave(roomID, c)
}

// disconnect tears down connection state: implicit leave from all rooms and
// presence removal (only if this is still the subject's registered handle).
func (gw *Gateway) disconnect(c *Client) {
	gw.hub.LeaveAll(c)
	gw.presence.Unbind(c.Subject(), c)
	c.close()
	log.Info().Str("subject", c.Subject()).Msg("realtime: disconnected")
}
