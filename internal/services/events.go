package services

import (
	"context"

	"gorm.io/gorm"
)

// ProposalAccepted is the domain event emitted when a client accepts a
// provider's proposal and the request moves to in_progress. The chat registry
// consumes it to create the conversation for the request, which keeps the
// lifecycle engine free of any dependency on chat internals.
type ProposalAccepted struct {
	RequestID  string
	ClientID   string
	ProviderID string
}

// ProposalAcceptedHandler consumes ProposalAccepted events. The handler runs
// inside the same transaction as the status change (tx is the transaction
// handle), so a failing handler rolls the transition back and the two writes
// act as one unit.
type ProposalAcceptedHandler interface {
	HandleProposalAccepted(ctx context.Context, tx *gorm.DB, ev ProposalAccepted) error
}

// Notifier pushes best-effort events to a specific subject's personal channel
// when they are online. Implementations must never block on delivery and
// silently drop for offline subjects; durable state always lives in the
// stores, so a dropped notification costs only immediacy.
type Notifier interface {
	NotifyIfOnline(subjectID, event string, payload any)
}

// NopNotifier discards all notifications. Useful in tests and in wiring paths
// where no gateway is attached.
type NopNotifier struct{}

// NotifyIfOnline implements Notifier by doing nothing.
func (NopNotifier) NotifyIfOnline(string, string, any) {}
