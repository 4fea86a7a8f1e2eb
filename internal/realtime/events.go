// Package realtime implements the websocket gateway: connection lifecycle,
// room membership, message intake and broadcast, history replay, and
// best-effort presence notifications.
//
// The wire protocol is JSON frames. Clients send
//
//	{"event": "...", "room": "...", "sender_id": "...", "content": "..."}
//
// and receive
//
//	{"event": "...", "data": {...}}
//
// Room keys are polymorphic: a service request id or a chat id both work;
// resolution happens once in ChatService.ResolveRoom.
package realtime

import "time"

// Client-to-server events.
const (
	EventJoinChat    = "join_service_chat"
	EventSendMessage = "send_message"
	EventLeaveChat   = "leave_chat"
)

// Server-to-client events.
const (
	EventChatHistory     = "chat_history"
	EventReceiveMessage  = "receive_message"
	EventNewChatActivity = "new_chat_activity"
	EventAuthError       = "auth_error"
	EventMessageError    = "message_error"
	EventHistoryError    = "history_error"
)

// inbound is a frame received from a connected client.
type inbound struct {
	Event    string `json:"event"`
	Room     string `json:"room,omitempty"`
	SenderID string `json:"sender_id,omitempty"`
	Content  string `json:"content,omitempty"`
}

// outbound is a frame pushed to a connected client.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// MessagePayload is the wire shape of a chat message, used both in history
// replay and in receive_message broadcasts. In history replay Room echoes the
// key the client joined with; broadcasts carry the canonical chat id, since
// one frame is shared by members who may have joined via different keys.
type MessagePayload struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryPayload carries the full ascending message history for a room.
type HistoryPayload struct {
	Room    string           `json:"room"`
	History []MessagePayload `json:"history"`
}

// ErrorPayload is attached to message_error and history_error events.
type ErrorPayload struct {
	Room  string `json:"room,omitempty"`
	Error string `json:"error"`
}
