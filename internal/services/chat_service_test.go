package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-servicehub-backend/internal/domain"
)

func TestEnsure_Validation(t *testing.T) {
	db := newServiceDB(t)
	svc := NewChatService(db)
	ctx := context.Background()

	if _, _, err := svc.Ensure(ctx, "", "p1", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty client: %v", err)
	}
	if _, _, err := svc.Ensure(ctx, "u1", "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty provider: %v", err)
	}
	if _, _, err := svc.Ensure(ctx, "u1", "p404", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown provider: %v", err)
	}
}

func TestEnsure_Idempotent(t *testing.T) {
	db := newServiceDB(t)
	svc := NewChatService(db)
	ctx := context.Background()

	a, created, err := svc.Ensure(ctx, "u1", "p1", "")
	if err != nil || !created {
		t.Fatalf("first: created=%v err=%v", created, err)
	}
	b, created, err := svc.Ensure(ctx, "u1", "p1", "")
	if err != nil || created || b.ID != a.ID {
		t.Fatalf("second: %+v created=%v err=%v", b, created, err)
	}
}

func TestListForUser_RoleDispatch(t *testing.T) {
	db := newServiceDB(t)
	svc := NewChatService(db)
	ctx := context.Background()

	if _, _, err := svc.Ensure(ctx, "u1", "p1", ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	asClient, err := svc.ListForUser(ctx, "u1", "client")
	if err != nil || len(asClient) != 1 || asClient[0].CounterpartName != "Garage One" {
		t.Fatalf("client listing: %#v %v", asClient, err)
	}
	asProvider, err := svc.ListForUser(ctx, "p1", "provider")
	if err != nil || len(asProvider) != 1 || asProvider[0].CounterpartName != "Alice" {
		t.Fatalf("provider listing: %#v %v", asProvider, err)
	}
	if _, err := svc.ListForUser(ctx, "u1", "admin"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unknown role: %v", err)
	}
}

func TestGetDetail(t *testing.T) {
	db := newServiceDB(t)
	svc := NewChatService(db)
	ctx := context.Background()

	chat, _, err := svc.Ensure(ctx, "u1", "p1", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	d, err := svc.GetDetail(ctx, chat.ID, "u1")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if d.ClientName != "Alice" || d.ProviderName != "Garage One" {
		t.Fatalf("names: %+v", d)
	}
	if d.CounterpartName != "Garage One" {
		t.Fatalf("client's counterpart should be the provider: %+v", d)
	}

	d, err = svc.GetDetail(ctx, chat.ID, "p1")
	if err != nil || d.CounterpartName != "Alice" {
		t.Fatalf("provider's counterpart: %+v %v", d, err)
	}

	if _, err := svc.GetDetail(ctx, chat.ID, "u2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger detail: %v", err)
	}
	if _, err := svc.GetDetail(ctx, "nope", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing chat: %v", err)
	}
}

func TestAppend_Validation(t *testing.T) {
	db := newServiceDB(t)
	svc := NewChatService(db)
	svc.MaxContentRunes = 10
	ctx := context.Background()

	chat, _, err := svc.Ensure(ctx, "u1", "p1", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if _, err := svc.Append(ctx, chat.ID, "u1", "   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank content: %v", err)
	}
	if _, err := svc.Append(ctx, chat.ID, "u1", strings.Repeat("x", 11)); !errors.Is(err, ErrValidation) {
		t.Fatalf("oversized content: %v", err)
	}
	if _, err := svc.Append(ctx, "no-such-chat", "u1", "hi"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing chat: %v", err)
	}

	m, err := svc.Append(ctx, chat.ID, "u1", "hi there")
	if err != nil || m.Content != "hi there" {
		t.Fatalf("append: %+v %v", m, err)
	}
}

func TestMessagesAndHistory(t *testing.T) {
	db := newServiceDB(t)
	svc := NewChatService(db)
	ctx := context.Background()

	chat, _, err := svc.Ensure(ctx, "u1", "p1", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, content := range []string{"one", "two", "three"} {
		if _, err := svc.Append(ctx, chat.ID, "u1", content); err != nil {
			t.Fatalf("append %s: %v", content, err)
		}
	}

	// HTTP endpoint: newest first, participants only.
	msgs, err := svc.Messages(ctx, chat.ID, "u1")
	if err != nil || len(msgs) != 3 || msgs[0].Content != "three" {
		t.Fatalf("Messages: %#v %v", msgs, err)
	}
	if _, err := svc.Messages(ctx, chat.ID, "u2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger messages: %v", err)
	}

	// Gateway replay: oldest first.
	hist, err := svc.HistoryAsc(ctx, chat.ID)
	if err != nil || len(hist) != 3 || hist[0].Content != "one" || hist[2].Content != "three" {
		t.Fatalf("HistoryAsc: %#v %v", hist, err)
	}
}

func TestResolveRoom(t *testing.T) {
	db := newServiceDB(t)
	chats := NewChatService(db)
	lifecycle := NewLifecycleService(db, chats, nil)
	ctx := context.Background()

	req, err := lifecycle.Create(ctx, "u1", "v1", "cat1", "desc", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := lifecycle.Propose(ctx, "p1", req.ID, 80); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := lifecycle.AcceptProposal(ctx, "u1", req.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// By service request id.
	byService, chat, err := chats.ResolveRoom(ctx, req.ID)
	if err != nil || chat == nil {
		t.Fatalf("resolve by service: %v", err)
	}
	// By chat id.
	byChat, chat2, err := chats.ResolveRoom(ctx, chat.ID)
	if err != nil || chat2 == nil {
		t.Fatalf("resolve by chat: %v", err)
	}
	if byService != byChat || byService != chat.ID {
		t.Fatalf("both keys must resolve to the same room: %q vs %q", byService, byChat)
	}

	// Unknown key falls through to itself with no chat.
	room, none, err := chats.ResolveRoom(ctx, "free-form-room")
	if err != nil || none != nil || room != "free-form-room" {
		t.Fatalf("unknown key: %q %v %v", room, none, err)
	}
}

func TestActivityTargets(t *testing.T) {
	db := newServiceDB(t)
	chats := NewChatService(db)
	lifecycle := NewLifecycleService(db, chats, nil)
	ctx := context.Background()

	req, _ := lifecycle.Create(ctx, "u1", "v1", "cat1", "desc", "")
	if _, err := lifecycle.Propose(ctx, "p1", req.ID, 80); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := lifecycle.AcceptProposal(ctx, "u1", req.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, chat, err := chats.ResolveRoom(ctx, req.ID)
	if err != nil || chat == nil {
		t.Fatalf("resolve: %v", err)
	}

	targets, err := chats.ActivityTargets(ctx, chat)
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	if len(targets) != 2 || targets[0] != "u1" || targets[1] != "p1" {
		t.Fatalf("targets = %#v, want [u1 p1]", targets)
	}

	// Service-less chats ping nobody.
	free := &domain.Chat{ID: "x", ClientID: "u1", ProviderID: "p1"}
	targets, err = chats.ActivityTargets(ctx, free)
	if err != nil || targets != nil {
		t.Fatalf("presales targets: %#v %v", targets, err)
	}
	targets, err = chats.ActivityTargets(ctx, nil)
	if err != nil || targets != nil {
		t.Fatalf("nil chat targets: %#v %v", targets, err)
	}
}

func TestHandleProposalAccepted_IsIdempotent(t *testing.T) {
	db := newServiceDB(t)
	svc := NewChatService(db)
	ctx := context.Background()

	ev := ProposalAccepted{RequestID: "svc-1", ClientID: "u1", ProviderID: "p1"}
	if err := svc.HandleProposalAccepted(ctx, db, ev); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := svc.HandleProposalAccepted(ctx, db, ev); err != nil {
		t.Fatalf("second: %v", err)
	}

	var count int64
	if err := db.Model(&domain.Chat{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("duplicate event created %d chats", count)
	}
}
