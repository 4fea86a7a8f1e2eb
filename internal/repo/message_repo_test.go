package repo

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-servicehub-backend/internal/domain"
)

func newChatForMessages(t *testing.T, db *gorm.DB) *domain.Chat {
	t.Helper()
	chat, _, err := EnsureChat(context.Background(), db, "u1", "p1", "")
	if err != nil {
		t.Fatalf("ensure chat: %v", err)
	}
	return chat
}

func TestAppendMessage_PersistsFields(t *testing.T) {
	db := newTestDB(t)
	seedDirectory(t, db)
	chat := newChatForMessages(t, db)

	start := time.Now().UTC().Add(-time.Minute)
	m, err := AppendMessage(context.Background(), db, chat.ID, "u1", "hello there")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if m.ID == "" || m.ChatID != chat.ID || m.SenderID != "u1" || m.Content != "hello there" {
		t.Fatalf("unexpected message: %+v", m)
	}
	if m.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt unset: %v", m.CreatedAt)
	}
}

func TestListMessages_Ordering(t *testing.T) {
	db := newTestDB(t)
	seedDirectory(t, db)
	chat := newChatForMessages(t, db)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	seed := []domain.Message{
		{ID: "m2", ChatID: chat.ID, SenderID: "p1", Content: "b", CreatedAt: base.Add(time.Minute)},
		{ID: "m1", ChatID: chat.ID, SenderID: "u1", Content: "a", CreatedAt: base},
		{ID: "m3", ChatID: chat.ID, SenderID: "u1", Content: "c", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", seed[i].ID, err)
		}
	}

	asc, err := ListMessagesAsc(context.Background(), db, chat.ID)
	if err != nil {
		t.Fatalf("ListMessagesAsc: %v", err)
	}
	if len(asc) != 3 || asc[0].ID != "m1" || asc[1].ID != "m2" || asc[2].ID != "m3" {
		t.Fatalf("ascending order wrong: %#v", asc)
	}

	desc, err := ListMessagesDesc(context.Background(), db, chat.ID, 0)
	if err != nil {
		t.Fatalf("ListMessagesDesc: %v", err)
	}
	if len(desc) != 3 || desc[0].ID != "m3" || desc[2].ID != "m1" {
		t.Fatalf("descending order wrong: %#v", desc)
	}

	capped, err := ListMessagesDesc(context.Background(), db, chat.ID, 2)
	if err != nil || len(capped) != 2 || capped[0].ID != "m3" {
		t.Fatalf("limit not applied: %v %#v", err, capped)
	}
}

func TestListMessages_TieBreakOnID(t *testing.T) {
	db := newTestDB(t)
	seedDirectory(t, db)
	chat := newChatForMessages(t, db)

	// Equal timestamps: ordering must still be deterministic via id.
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"b-id", "a-id", "c-id"} {
		m := domain.Message{ID: id, ChatID: chat.ID, SenderID: "u1", Content: id, CreatedAt: at}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	asc, err := ListMessagesAsc(context.Background(), db, chat.ID)
	if err != nil {
		t.Fatalf("ListMessagesAsc: %v", err)
	}
	if asc[0].ID != "a-id" || asc[1].ID != "b-id" || asc[2].ID != "c-id" {
		t.Fatalf("tie-break order wrong: %#v", asc)
	}
}

func TestCountMessages(t *testing.T) {
	db := newTestDB(t)
	seedDirectory(t, db)
	chat := newChatForMessages(t, db)

	if _, err := AppendMessage(context.Background(), db, chat.ID, "u1", "one"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := AppendMessage(context.Background(), db, chat.ID, "p1", "two"); err != nil {
		t.Fatalf("append: %v", err)
	}

	n, err := CountMessages(context.Background(), db, chat.ID)
	if err != nil || n != 2 {
		t.Fatalf("CountMessages = %d, %v", n, err)
	}
	n, err = CountMessages(context.Background(), db, "other-chat")
	if err != nil || n != 0 {
		t.Fatalf("foreign chat count = %d, %v", n, err)
	}
}
