// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// EnsureChat is the concurrency-sensitive operation here: creation must be
// idempotent per (client, provider, service) triple even when two callers
// race. The implementation inserts first and falls back to a lookup when the
// composite unique index rejects the row, so there is no check-then-insert
// window.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-servicehub-backend/internal/domain"
)

// ChatSummary is one row of a user's chat listing: the chat, the counterpart
// display name, and the most recent message (empty when the chat has none).
type ChatSummary struct {
	ChatID          string     `json:"chat_id"`
	ServiceID       string     `json:"service_id,omitempty"`
	CounterpartName string     `json:"counterpart_name"`
	LastMessage     string     `json:"last_message,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
}

// EnsureChat returns the chat for the (clientID, providerID, serviceID)
// triple, creating it when absent. serviceID is "" for pre-sales chats.
// The boolean result reports whether a new row was inserted.
//
// Safe under concurrent callers: the insert is guarded by the ux_chat_triple
// unique index, and a duplicate-key rejection falls back to fetching the row
// the winner created.
func EnsureChat(ctx context.Context, db *gorm.DB, clientID, providerID, serviceID string) (*domain.Chat, bool, error) {
	c := &domain.Chat{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		ProviderID: providerID,
		ServiceID:  serviceID,
		CreatedAt:  time.Now().UTC(),
	}
	err := db.WithContext(ctx).Create(c).Error
	if err == nil {
		return c, true, nil
	}
	if !isDuplicateKey(err) {
		return nil, false, err
	}
	existing, ferr := FindChat(ctx, db, clientID, providerID, serviceID)
	if ferr != nil {
		return nil, false, ferr
	}
	return existing, false, nil
}

// FindChat fetches the chat matching the full triple, or ErrNotFound.
func FindChat(ctx context.Context, db *gorm.DB, clientID, providerID, serviceID string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("client_id = ? AND provider_id = ? AND service_id = ?", clientID, providerID, serviceID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChat fetches a chat by ID, or ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindChatByService fetches the chat linked to a service request, or
// ErrNotFound. Used by the realtime gateway's room resolution.
func FindChatByService(ctx context.Context, db *gorm.DB, serviceID string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).Where("service_id = ?", serviceID).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChatsForClient returns the chat summaries where clientID is the client
// side. Service-linked chats are restricted to requests in an active status;
// service-less chats always appear. Ordering is most-recent-message first,
// chats without messages last.
func ListChatsForClient(ctx context.Context, db *gorm.DB, clientID string) ([]ChatSummary, error) {
	return listChats(ctx, db, "chats.client_id = ?", clientID, "providers", "chats.provider_id")
}

// ListChatsForProvider is the provider-side variant of ListChatsForClient;
// the counterpart name comes from the users table.
func ListChatsForProvider(ctx context.Context, db *gorm.DB, providerID string) ([]ChatSummary, error) {
	return listChats(ctx, db, "chats.provider_id = ?", providerID, "users", "chats.client_id")
}

// listChats joins each chat with its latest message (correlated subqueries on
// idx_chat_msgs) and the counterpart directory table for the display name.
func listChats(ctx context.Context, db *gorm.DB, participantCond, participantID, nameTable, nameFK string) ([]ChatSummary, error) {
	var out []ChatSummary
	active := []domain.Status{domain.StatusPending, domain.StatusAccepted, domain.StatusInProgress}
	err := db.WithContext(ctx).
		Table("chats").
		Select(`chats.id AS chat_id,
			chats.service_id AS service_id,
			`+nameTable+`.name AS counterpart_name,
			(SELECT m.content FROM messages m WHERE m.chat_id = chats.id AND m.deleted_at IS NULL ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS last_message,
			(SELECT m.created_at FROM messages m WHERE m.chat_id = chats.id AND m.deleted_at IS NULL ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS last_message_at`).
		Joins("LEFT JOIN "+nameTable+" ON "+nameTable+".id = "+nameFK).
		Joins("LEFT JOIN service_requests ON service_requests.id = chats.service_id").
		Where(participantCond, participantID).
		Where("chats.deleted_at IS NULL").
		Where("chats.service_id = ? OR service_requests.status IN ?", "", active).
		Order("last_message_at IS NULL, last_message_at DESC").
		Scan(&out).Error
	return out, err
}

// isDuplicateKey detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
