// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model. Messages are append-only: there is no update or delete path.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-servicehub-backend/internal/domain"
)

// AppendMessage inserts a new message row with a server-assigned UTC
// timestamp and returns it.
func AppendMessage(ctx context.Context, db *gorm.DB, chatID, senderID, content string) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessagesAsc returns a chat's messages ordered deterministically
// (CreatedAt ASC, ID ASC). Used for the gateway's history replay on join.
func ListMessagesAsc(ctx context.Context, db *gorm.DB, chatID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListMessagesDesc returns a chat's messages newest-first, optionally capped
// by limit (limit <= 0 means no cap). Used for list summaries and the HTTP
// message endpoint.
func ListMessagesDesc(ctx context.Context, db *gorm.DB, chatID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).
		Scan(&total).Error
	return total, err
}
