// Service request HTTP handlers.
//
// This file exposes REST endpoints for the request lifecycle:
//   - POST /requests                        (create)
//   - GET  /requests/available              (open requests, provider view)
//   - GET  /requests/mine                   (client's requests)
//   - GET  /requests/assigned               (provider's requests)
//   - GET  /requests/{id}                   (detail with linked chat id)
//   - POST /requests/{id}/propose           (provider price offer)
//   - POST /requests/{id}/accept            (provider direct accept)
//   - POST /requests/{id}/decline           (provider terminal decline)
//   - POST /requests/{id}/proposal/accept   (client accepts the offer)
//   - POST /requests/{id}/proposal/decline  (client rejects the offer)
//   - POST /requests/{id}/finalize          (mark completed)
//   - POST /requests/{id}/cancel            (client cancels)
//   - POST /requests/{id}/rating            (client one-time rating)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results (including sentinel errors) into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-servicehub-backend/internal/domain"
	"github.com/tbourn/go-servicehub-backend/internal/http/middleware"
)

//
// Service contracts (context-aware)
//

// LifecycleAPI defines the request lifecycle operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type LifecycleAPI interface {
	Create(ctx context.Context, clientID, vehicleID, categoryID, description, providerID string) (*domain.ServiceRequest, error)
	ListAvailable(ctx context.Context) ([]domain.ServiceRequest, error)
	ListMine(ctx context.Context, clientID string) ([]domain.ServiceRequest, error)
	ListForProvider(ctx context.Context, providerID string) ([]domain.ServiceRequest, error)
	Get(ctx context.Context, callerID, id string) (*domain.ServiceRequest, string, error)
	Propose(ctx context.Context, providerID, id string, amount float64) (*domain.ServiceRequest, error)
	AcceptByProvider(ctx context.Context, providerID, id string) (*domain.ServiceRequest, error)
	DeclineRequest(ctx context.Context, providerID, id string) (*domain.ServiceRequest, error)
	AcceptProposal(ctx context.Context, clientID, id string) (*domain.ServiceRequest, error)
	DeclineProposal(ctx context.Context, clientID, id string) (*domain.ServiceRequest, error)
	Finalize(ctx context.Context, callerID, id string) (*domain.ServiceRequest, error)
	Cancel(ctx context.Context, clientID, id string) (*domain.ServiceRequest, error)
	Rate(ctx context.Context, clientID, id string, rating int, comment string) (*domain.ServiceRequest, error)
}

// ServiceHandlers groups the lifecycle endpoints.
type ServiceHandlers struct {
	svc LifecycleAPI
}

// NewServiceHandlers constructs a ServiceHandlers bound to the given service.
func NewServiceHandlers(svc LifecycleAPI) *ServiceHandlers {
	return &ServiceHandlers{svc: svc}
}

// callerID extracts the authenticated subject id set by the auth middleware.
func callerID(c *gin.Context) string {
	return c.GetString(middleware.CtxUserID)
}

//
// DTOs
//

// CreateRequestBody is the JSON payload for raising a service request.
type CreateRequestBody struct {
	Description string `json:"description" binding:"required"`
	VehicleID   string `json:"vehicle_id" binding:"required"`
	CategoryID  string `json:"category_id" binding:"required"`
	// ProviderID optionally targets a specific provider; empty leaves the
	// request open to any provider.
	ProviderID string `json:"provider_id"`
}

// ProposeBody is the JSON payload for a provider price offer.
type ProposeBody struct {
	Amount float64 `json:"amount" binding:"required"`
}

// RatingBody is the JSON payload for the client's one-time evaluation.
type RatingBody struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// RequestDetailResponse wraps a request with its linked chat id, when one
// exists.
type RequestDetailResponse struct {
	Request *domain.ServiceRequest `json:"request"`
	ChatID  string                 `json:"chat_id,omitempty"`
}

//
// Handlers
//

// CreateRequest creates a pending request for one of the caller's vehicles
// and returns 201 with the stored resource, short code included.
func (h *ServiceHandlers) CreateRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	req, err := h.svc.Create(c.Request.Context(), callerID(c),
		body.VehicleID, body.CategoryID, strings.TrimSpace(body.Description), body.ProviderID)
	if err != nil {
		failFromService(c, err, "could not create service request")
		return
	}
	ok(c, http.StatusCreated, req)
}

// ListAvailable returns open (pending, unassigned) requests, newest-first.
func (h *ServiceHandlers) ListAvailable(c *gin.Context) {
	items, err := h.svc.ListAvailable(c.Request.Context())
	if err != nil {
		failFromService(c, err, "could not list requests")
		return
	}
	ok(c, http.StatusOK, items)
}

// ListMine returns the requests raised against the caller's vehicles.
func (h *ServiceHandlers) ListMine(c *gin.Context) {
	items, err := h.svc.ListMine(c.Request.Context(), callerID(c))
	if err != nil {
		failFromService(c, err, "could not list requests")
		return
	}
	ok(c, http.StatusOK, items)
}

// ListAssigned returns the requests assigned to the calling provider.
func (h *ServiceHandlers) ListAssigned(c *gin.Context) {
	items, err := h.svc.ListForProvider(c.Request.Context(), callerID(c))
	if err != nil {
		failFromService(c, err, "could not list requests")
		return
	}
	ok(c, http.StatusOK, items)
}

// GetRequest returns one request the caller participates in, with the linked
// chat id when present.
func (h *ServiceHandlers) GetRequest(c *gin.Context) {
	req, chatID, err := h.svc.Get(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		failFromService(c, err, "service request not found")
		return
	}
	ok(c, http.StatusOK, RequestDetailResponse{Request: req, ChatID: chatID})
}

// Propose submits a price offer, claiming the request for the provider.
func (h *ServiceHandlers) Propose(c *gin.Context) {
	var body ProposeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "amount required")
		return
	}
	req, err := h.svc.Propose(c.Request.Context(), callerID(c), c.Param("id"), body.Amount)
	if err != nil {
		failFromService(c, err, "could not submit proposal")
		return
	}
	ok(c, http.StatusOK, req)
}

// Accept claims a pending request directly, without a price round-trip.
func (h *ServiceHandlers) Accept(c *gin.Context) {
	req, err := h.svc.AcceptByProvider(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		failFromService(c, err, "could not accept request")
		return
	}
	ok(c, http.StatusOK, req)
}

// Decline terminally declines a pending request.
func (h *ServiceHandlers) Decline(c *gin.Context) {
	req, err := h.svc.DeclineRequest(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		failFromService(c, err, "could not decline request")
		return
	}
	ok(c, http.StatusOK, req)
}

// AcceptProposal accepts the provider's offer on behalf of the client; the
// request moves to in_progress and its chat is created atomically.
func (h *ServiceHandlers) AcceptProposal(c *gin.Context) {
	req, err := h.svc.AcceptProposal(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		failFromService(c, err, "could not accept proposal")
		return
	}
	ok(c, http.StatusOK, req)
}

// DeclineProposal rejects the offer; the request returns to pending and is
// claimable again.
func (h *ServiceHandlers) DeclineProposal(c *gin.Context) {
	req, err := h.svc.DeclineProposal(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		failFromService(c, err, "could not decline proposal")
		return
	}
	ok(c, http.StatusOK, req)
}

// Finalize marks the request completed. Either participant may call it.
func (h *ServiceHandlers) Finalize(c *gin.Context) {
	req, err := h.svc.Finalize(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		failFromService(c, err, "could not finalize request")
		return
	}
	ok(c, http.StatusOK, req)
}

// Cancel moves the caller's request to cancelled.
func (h *ServiceHandlers) Cancel(c *gin.Context) {
	req, err := h.svc.Cancel(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		failFromService(c, err, "could not cancel request")
		return
	}
	ok(c, http.StatusOK, req)
}

// Rate stores the client's one-time rating on a completed request.
func (h *ServiceHandlers) Rate(c *gin.Context) {
	var body RatingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "rating required")
		return
	}
	req, err := h.svc.Rate(c.Request.Context(), callerID(c), c.Param("id"), body.Rating, strings.TrimSpace(body.Comment))
	if err != nil {
		failFromService(c, err, "could not rate request")
		return
	}
	ok(c, http.StatusOK, req)
}
