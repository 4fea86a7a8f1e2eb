// Package services – LifecycleService
//
// This file implements the LifecycleService, the state machine behind a
// service request. It validates every transition against the table in
// domain/status.go, settles claim races through conditional updates, and
// emits the ProposalAccepted domain event so chat creation happens without
// the engine knowing anything about chats.
//
// Service-level errors (ErrNotFound, ErrForbidden, ErrInvalidState,
// ErrConflict, ...) are returned for predictable cases so handlers can map
// them to HTTP results consistently. Repeating a mutating call after it
// succeeded yields a deterministic ErrInvalidState/ErrConflict instead of
// corrupting state.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-servicehub-backend/internal/domain"
	"github.com/tbourn/go-servicehub-backend/internal/repo"
	"github.com/tbourn/go-servicehub-backend/internal/utils"
)

// EventNewServiceRequest is pushed to a provider's personal channel when a
// client raises a request targeted at them.
const EventNewServiceRequest = "new_service_request"

// codeRetries bounds the short-code collision retry loop on create.
const codeRetries = 5

// LifecycleService drives a service request through its lifecycle.
type LifecycleService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Proposals consumes ProposalAccepted events inside the accepting
	// transaction. Required: accepting a proposal without a consumer would
	// silently skip chat creation.
	Proposals ProposalAcceptedHandler
	// Notify receives best-effort liveness hints. Never nil after
	// NewLifecycleService; defaults to NopNotifier.
	Notify Notifier
}

// NewLifecycleService constructs a LifecycleService.
func NewLifecycleService(db *gorm.DB, proposals ProposalAcceptedHandler, notify Notifier) *LifecycleService {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &LifecycleService{DB: db, Proposals: proposals, Notify: notify}
}

// Create registers a new pending request for one of the client's vehicles.
// providerID may be empty (open request); when set, the provider is validated
// and, if online, pinged with a new_service_request event.
//
// Returns ErrValidation for a blank description, ErrNotFound when the
// vehicle/category/provider does not exist, and ErrForbidden when the vehicle
// belongs to someone else.
func (s *LifecycleService) Create(ctx context.Context, clientID, vehicleID, categoryID, description, providerID string) (*domain.ServiceRequest, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrValidation
	}

	v, err := repo.GetVehicle(ctx, s.DB, vehicleID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if v.OwnerID != clientID {
		return nil, ErrForbidden
	}
	if ok, err := repo.CategoryExists(ctx, s.DB, categoryID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotFound
	}
	if providerID != "" {
		if ok, err := repo.ProviderExists(ctx, s.DB, providerID); err != nil {
			return nil, err
		} else if !ok {
			return nil, ErrNotFound
		}
	}

	// Short codes collide rarely (36^8 space); retry with a fresh code when
	// the unique index objects.
	var req *domain.ServiceRequest
	for i := 0; i < codeRetries; i++ {
		req, err = repo.CreateServiceRequest(ctx, s.DB, utils.ShortCode(), description, vehicleID, categoryID, providerID)
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	if providerID != "" {
		s.Notify.NotifyIfOnline(providerID, EventNewServiceRequest, map[string]any{
			"id":          req.ID,
			"code":        req.Code,
			"description": req.Description,
		})
	}
	return req, nil
}

// ListAvailable returns all pending, unassigned requests newest-first.
// Read-only; callers gate on the provider role at the transport layer.
func (s *LifecycleService) ListAvailable(ctx context.Context) ([]domain.ServiceRequest, error) {
	return repo.ListAvailableRequests(ctx, s.DB)
}

// ListMine returns the requests raised against any of the client's vehicles,
// newest-first.
func (s *LifecycleService) ListMine(ctx context.Context, clientID string) ([]domain.ServiceRequest, error) {
	ids, err := repo.ListVehicleIDsByOwner(ctx, s.DB, clientID)
	if err != nil {
		return nil, err
	}
	return repo.ListRequestsByVehicles(ctx, s.DB, ids)
}

// ListForProvider returns the requests assigned to providerID, newest-first.
func (s *LifecycleService) ListForProvider(ctx context.Context, providerID string) ([]domain.ServiceRequest, error) {
	return repo.ListRequestsByProvider(ctx, s.DB, providerID)
}

// Get returns a request the caller participates in, together with the linked
// chat id when one exists. Clients must own the underlying vehicle; providers
// must be assigned.
func (s *LifecycleService) Get(ctx context.Context, callerID, id string) (*domain.ServiceRequest, string, error) {
	req, err := repo.GetServiceRequest(ctx, s.DB, id)
	if err != nil {
		return nil, "", mapNotFound(err)
	}
	owner, err := s.vehicleOwner(ctx, req.VehicleID)
	if err != nil {
		return nil, "", err
	}
	if callerID != owner && callerID != req.ProviderID {
		return nil, "", ErrForbidden
	}
	chatID := ""
	if chat, err := repo.FindChatByService(ctx, s.DB, id); err == nil {
		chatID = chat.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}
	return req, chatID, nil
}

// Propose submits a price offer on a pending request and claims it for the
// provider. The claim is one conditional UPDATE, so concurrent proposals on
// the same request leave exactly one winner; the loser gets ErrConflict (a
// different provider holds the request) or ErrInvalidState (the status moved
// on).
func (s *LifecycleService) Propose(ctx context.Context, providerID, id string, amount float64) (*domain.ServiceRequest, error) {
	if amount <= 0 {
		return nil, ErrValidation
	}
	return s.claim(ctx, providerID, id, map[string]any{
		"status": domain.StatusProposal,
		"amount": amount,
	})
}

// AcceptByProvider claims a pending request directly, without the proposal
// round-trip. The request lands in the accepted status; chat creation stays
// exclusive to the client's AcceptProposal path.
func (s *LifecycleService) AcceptByProvider(ctx context.Context, providerID, id string) (*domain.ServiceRequest, error) {
	return s.claim(ctx, providerID, id, map[string]any{
		"status": domain.StatusAccepted,
	})
}

// claim runs the conditional claim UPDATE and, when no row matched,
// re-reads the request to report why the claim failed.
func (s *LifecycleService) claim(ctx context.Context, providerID, id string, updates map[string]any) (*domain.ServiceRequest, error) {
	rows, err := repo.ClaimRequest(ctx, s.DB, id, providerID, updates)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		req, err := repo.GetServiceRequest(ctx, s.DB, id)
		if err != nil {
			return nil, mapNotFound(err)
		}
		if req.Assigned() && req.ProviderID != providerID {
			return nil, ErrConflict
		}
		return nil, ErrInvalidState
	}
	return repo.GetServiceRequest(ctx, s.DB, id)
}

// DeclineRequest is the terminal decline: the provider refuses a pending
// request, the status becomes declined, and any assignment is cleared.
// Providers may only decline requests that are unassigned or assigned to
// them.
func (s *LifecycleService) DeclineRequest(ctx context.Context, providerID, id string) (*domain.ServiceRequest, error) {
	req, err := repo.GetServiceRequest(ctx, s.DB, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if req.Assigned() && req.ProviderID != providerID {
		return nil, ErrForbidden
	}
	rows, err := repo.UpdateRequestStatus(ctx, s.DB, id, domain.StatusPending, domain.StatusDeclined,
		map[string]any{"provider_id": ""})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrInvalidState
	}
	return repo.GetServiceRequest(ctx, s.DB, id)
}

// AcceptProposal moves a request from proposal to in_progress on behalf of
// the client who owns the underlying vehicle, and emits ProposalAccepted
// inside the same transaction. The chat registry consumes the event, so the
// status change and the chat creation commit or roll back as one unit.
func (s *LifecycleService) AcceptProposal(ctx context.Context, clientID, id string) (*domain.ServiceRequest, error) {
	var out *domain.ServiceRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := repo.GetServiceRequest(ctx, tx, id)
		if err != nil {
			return mapNotFound(err)
		}
		owner, err := vehicleOwnerTx(ctx, tx, req.VehicleID)
		if err != nil {
			return err
		}
		if owner != clientID {
			return ErrForbidden
		}
		rows, err := repo.UpdateRequestStatus(ctx, tx, id, domain.StatusProposal, domain.StatusInProgress, nil)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrInvalidState
		}
		if s.Proposals != nil {
			ev := ProposalAccepted{RequestID: id, ClientID: clientID, ProviderID: req.ProviderID}
			if err := s.Proposals.HandleProposalAccepted(ctx, tx, ev); err != nil {
				return err
			}
		}
		out, err = repo.GetServiceRequest(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeclineProposal reverts a proposal: the request returns to pending and the
// provider assignment and amount are cleared, so other providers can claim it
// again.
func (s *LifecycleService) DeclineProposal(ctx context.Context, clientID, id string) (*domain.ServiceRequest, error) {
	req, err := repo.GetServiceRequest(ctx, s.DB, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	owner, err := s.vehicleOwner(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	if owner != clientID {
		return nil, ErrForbidden
	}
	rows, err := repo.UpdateRequestStatus(ctx, s.DB, id, domain.StatusProposal, domain.StatusPending,
		map[string]any{"provider_id": "", "amount": nil})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrInvalidState
	}
	return repo.GetServiceRequest(ctx, s.DB, id)
}

// Finalize marks a request completed. Either side of the engagement (the
// vehicle owner or the assigned provider) may call it; the current status
// must allow the transition.
func (s *LifecycleService) Finalize(ctx context.Context, callerID, id string) (*domain.ServiceRequest, error) {
	req, err := repo.GetServiceRequest(ctx, s.DB, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	owner, err := s.vehicleOwner(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	if callerID != owner && (req.ProviderID == "" || callerID != req.ProviderID) {
		return nil, ErrForbidden
	}
	if !req.Status.CanTransition(domain.StatusCompleted) {
		return nil, ErrInvalidState
	}
	rows, err := repo.UpdateRequestStatus(ctx, s.DB, id, req.Status, domain.StatusCompleted, nil)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Lost a race with another transition.
		return nil, ErrInvalidState
	}
	return repo.GetServiceRequest(ctx, s.DB, id)
}

// Cancel moves a request owned by the client to cancelled, from any
// non-terminal status.
func (s *LifecycleService) Cancel(ctx context.Context, clientID, id string) (*domain.ServiceRequest, error) {
	req, err := repo.GetServiceRequest(ctx, s.DB, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	owner, err := s.vehicleOwner(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	if owner != clientID {
		return nil, ErrForbidden
	}
	if !req.Status.CanTransition(domain.StatusCancelled) {
		return nil, ErrInvalidState
	}
	rows, err := repo.UpdateRequestStatus(ctx, s.DB, id, req.Status, domain.StatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrInvalidState
	}
	return repo.GetServiceRequest(ctx, s.DB, id)
}

// Rate attaches the client's one-time evaluation to a completed request.
// rating must be 1..5; the comment is optional. A second rating attempt
// fails with ErrAlreadyRated and leaves the stored value untouched.
func (s *LifecycleService) Rate(ctx context.Context, clientID, id string, rating int, comment string) (*domain.ServiceRequest, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrValidation
	}
	req, err := repo.GetServiceRequest(ctx, s.DB, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	owner, err := s.vehicleOwner(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	if owner != clientID {
		return nil, ErrForbidden
	}
	if req.Status != domain.StatusCompleted {
		return nil, ErrInvalidState
	}
	rows, err := repo.SetRating(ctx, s.DB, id, rating, comment)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrAlreadyRated
	}
	return repo.GetServiceRequest(ctx, s.DB, id)
}

// vehicleOwner resolves the owner of a vehicle via the service's DB handle.
func (s *LifecycleService) vehicleOwner(ctx context.Context, vehicleID string) (string, error) {
	return vehicleOwnerTx(ctx, s.DB, vehicleID)
}

// vehicleOwnerTx resolves a vehicle's owner on an arbitrary handle, mapping
// a missing vehicle to ErrNotFound.
func vehicleOwnerTx(ctx context.Context, db *gorm.DB, vehicleID string) (string, error) {
	v, err := repo.GetVehicle(ctx, db, vehicleID)
	if err != nil {
		return "", mapNotFound(err)
	}
	return v.OwnerID, nil
}

// mapNotFound converts gorm's record-not-found sentinel to the service-level
// ErrNotFound and passes other errors through.
func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
