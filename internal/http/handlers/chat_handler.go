// Chat HTTP handlers.
//
// This file exposes REST endpoints for the chat registry:
//   - POST /chats                (ensure a chat with a provider exists)
//   - GET  /chats                (role-dependent summaries)
//   - GET  /chats/{id}           (detail with resolved names)
//   - GET  /chats/{id}/messages  (messages, newest-first)
//
// Message sending is not HTTP: it goes through the websocket gateway so the
// durable write and the room broadcast share one code path.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-servicehub-backend/internal/domain"
	"github.com/tbourn/go-servicehub-backend/internal/http/middleware"
	"github.com/tbourn/go-servicehub-backend/internal/repo"
	"github.com/tbourn/go-servicehub-backend/internal/services"
)

// ChatAPI defines the chat registry operations consumed by HTTP handlers.
// Implementations must be safe for concurrent use and honor the provided
// context.
type ChatAPI interface {
	Ensure(ctx context.Context, clientID, providerID, serviceID string) (*domain.Chat, bool, error)
	ListForUser(ctx context.Context, subjectID, role string) ([]repo.ChatSummary, error)
	GetDetail(ctx context.Context, chatID, callerID string) (*services.ChatDetail, error)
	Messages(ctx context.Context, chatID, callerID string) ([]domain.Message, error)
}

// ChatHandlers groups the chat endpoints.
type ChatHandlers struct {
	svc ChatAPI
}

// NewChatHandlers constructs a ChatHandlers bound to the given service.
func NewChatHandlers(svc ChatAPI) *ChatHandlers {
	return &ChatHandlers{svc: svc}
}

// EnsureChatBody is the JSON payload for opening a conversation with a
// provider. ServiceID is optional: empty means a pre-sales chat not linked to
// any request.
type EnsureChatBody struct {
	ProviderID string `json:"provider_id" binding:"required"`
	ServiceID  string `json:"service_id"`
}

// EnsureChat returns the chat for (caller, provider, service), creating it
// when absent. 201 signals creation, 200 an existing chat.
func (h *ChatHandlers) EnsureChat(c *gin.Context) {
	var body EnsureChatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "provider_id required")
		return
	}
	chat, created, err := h.svc.Ensure(c.Request.Context(), callerID(c), body.ProviderID, body.ServiceID)
	if err != nil {
		failFromService(c, err, "could not open chat")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, chat)
}

// ListChats returns the caller's chat summaries. Clients see provider names,
// providers see client names; service-linked chats only appear while the
// request is still active.
func (h *ChatHandlers) ListChats(c *gin.Context) {
	items, err := h.svc.ListForUser(c.Request.Context(), callerID(c), c.GetString(middleware.CtxRole))
	if err != nil {
		failFromService(c, err, "could not list chats")
		return
	}
	ok(c, http.StatusOK, items)
}

// GetChat returns one chat with both participant names resolved.
func (h *ChatHandlers) GetChat(c *gin.Context) {
	detail, err := h.svc.GetDetail(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		failFromService(c, err, "chat not found")
		return
	}
	ok(c, http.StatusOK, detail)
}

// MessagesResponse carries a chat's messages together with the counterpart
// display name, so message views need no second round-trip for the header.
type MessagesResponse struct {
	CounterpartName string           `json:"counterpart_name"`
	Messages        []domain.Message `json:"messages"`
}

// ListMessages returns a chat's messages newest-first, with the counterpart
// name resolved for the caller.
func (h *ChatHandlers) ListMessages(c *gin.Context) {
	detail, err := h.svc.GetDetail(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		failFromService(c, err, "chat not found")
		return
	}
	items, err := h.svc.Messages(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		failFromService(c, err, "chat not found")
		return
	}
	ok(c, http.StatusOK, MessagesResponse{
		CounterpartName: detail.CounterpartName,
		Messages:        items,
	})
}
