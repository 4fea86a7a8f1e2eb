// Package services – ChatService
//
// This file implements the ChatService, the registry of conversations between
// clients and providers. It guarantees idempotent chat creation per
// (client, provider, service) triple, consumes the ProposalAccepted event
// from the lifecycle engine, enforces participant checks on reads, and owns
// the append/history operations the realtime gateway builds on.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-servicehub-backend/internal/domain"
	"github.com/tbourn/go-servicehub-backend/internal/repo"
)

// ChatDetail describes a chat with both participants' display names resolved.
type ChatDetail struct {
	Chat            *domain.Chat `json:"chat"`
	ClientName      string       `json:"client_name"`
	ProviderName    string       `json:"provider_name"`
	CounterpartName string       `json:"counterpart_name"`
}

// ChatService manages chat creation, listing, and message persistence.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// MaxContentRunes caps message content by rune length; <= 0 disables
	// the cap. Content is always required to be non-blank.
	MaxContentRunes int
}

// NewChatService constructs a ChatService with the default content cap.
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{DB: db, MaxContentRunes: 2000}
}

// Ensure returns the chat for the triple, creating it when absent. Explicit
// client-initiated creation passes serviceID == "" (pre-sales conversation);
// the unique index keeps a pair at one such chat. The boolean reports whether
// the chat was created by this call.
func (s *ChatService) Ensure(ctx context.Context, clientID, providerID, serviceID string) (*domain.Chat, bool, error) {
	if clientID == "" || providerID == "" {
		return nil, false, ErrValidation
	}
	if ok, err := repo.ProviderExists(ctx, s.DB, providerID); err != nil {
		return nil, false, err
	} else if !ok {
		return nil, false, ErrNotFound
	}
	return repo.EnsureChat(ctx, s.DB, clientID, providerID, serviceID)
}

// HandleProposalAccepted creates the request's chat inside the accepting
// transaction. Implements ProposalAcceptedHandler for the lifecycle engine.
func (s *ChatService) HandleProposalAccepted(ctx context.Context, tx *gorm.DB, ev ProposalAccepted) error {
	_, _, err := repo.EnsureChat(ctx, tx, ev.ClientID, ev.ProviderID, ev.RequestID)
	return err
}

// ListForUser returns the caller's chat summaries, role-dependent: clients
// see provider names, providers see client names. Service-linked chats are
// filtered to active request statuses; service-less chats always show.
func (s *ChatService) ListForUser(ctx context.Context, subjectID, role string) ([]repo.ChatSummary, error) {
	switch role {
	case "client":
		return repo.ListChatsForClient(ctx, s.DB, subjectID)
	case "provider":
		return repo.ListChatsForProvider(ctx, s.DB, subjectID)
	default:
		return nil, ErrForbidden
	}
}

// GetDetail returns a chat with resolved participant names. callerID must be
// one of the two participants; CounterpartName names the other one.
func (s *ChatService) GetDetail(ctx context.Context, chatID, callerID string) (*ChatDetail, error) {
	chat, err := repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !chat.IsParticipant(callerID) {
		return nil, ErrForbidden
	}
	clientName, err := repo.UserName(ctx, s.DB, chat.ClientID)
	if err != nil {
		return nil, err
	}
	providerName, err := repo.ProviderName(ctx, s.DB, chat.ProviderID)
	if err != nil {
		return nil, err
	}
	d := &ChatDetail{Chat: chat, ClientName: clientName, ProviderName: providerName}
	if callerID == chat.ClientID {
		d.CounterpartName = providerName
	} else {
		d.CounterpartName = clientName
	}
	return d, nil
}

// Messages returns a chat's messages newest-first for the HTTP endpoint,
// enforcing the participant check first.
func (s *ChatService) Messages(ctx context.Context, chatID, callerID string) ([]domain.Message, error) {
	chat, err := repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !chat.IsParticipant(callerID) {
		return nil, ErrForbidden
	}
	return repo.ListMessagesDesc(ctx, s.DB, chatID, 0)
}

// HistoryAsc returns a chat's full message history oldest-first, for the
// gateway's replay on join. No participant check: join already resolved the
// room for an authenticated connection, mirroring the relaxed policy of the
// realtime path.
func (s *ChatService) HistoryAsc(ctx context.Context, chatID string) ([]domain.Message, error) {
	return repo.ListMessagesAsc(ctx, s.DB, chatID)
}

// Append validates and persists a message sent through the gateway. The chat
// must exist and content must be non-blank and within the configured cap.
func (s *ChatService) Append(ctx context.Context, chatID, senderID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrValidation
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrValidation
	}
	if _, err := repo.GetChat(ctx, s.DB, chatID); err != nil {
		return nil, mapNotFound(err)
	}
	return repo.AppendMessage(ctx, s.DB, chatID, senderID, content)
}

// ResolveRoom maps a room key to a chat id. The key may be a service request
// id (older room naming) or a chat id; a service-linked chat wins when both
// could match. When the key resolves to a stored chat the chat is returned as
// well; otherwise the key itself is used as the room id with a nil chat.
func (s *ChatService) ResolveRoom(ctx context.Context, key string) (string, *domain.Chat, error) {
	chat, err := repo.FindChatByService(ctx, s.DB, key)
	if err == nil {
		return chat.ID, chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, err
	}
	chat, err = repo.GetChat(ctx, s.DB, key)
	if err == nil {
		return chat.ID, chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, err
	}
	return key, nil, nil
}

// ActivityTargets resolves the two subjects to ping after a message lands in
// a service-linked chat: the vehicle owner (client) and the assigned
// provider. Chats without a linked request return no targets.
func (s *ChatService) ActivityTargets(ctx context.Context, chat *domain.Chat) ([]string, error) {
	if chat == nil || chat.ServiceID == "" {
		return nil, nil
	}
	req, err := repo.GetServiceRequest(ctx, s.DB, chat.ServiceID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	v, err := repo.GetVehicle(ctx, s.DB, req.VehicleID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	targets := []string{v.OwnerID}
	if req.ProviderID != "" {
		targets = append(targets, req.ProviderID)
	}
	return targets, nil
}
