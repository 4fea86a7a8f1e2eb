// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ServiceRequest model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a request is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Claim races (two providers grabbing the same pending request) are settled
// by ClaimRequest, a single conditional UPDATE; the service layer inspects
// RowsAffected to distinguish winner from loser.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-servicehub-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateServiceRequest inserts a new pending request with the given short
// code. The request ID is a randomly generated UUID and CreatedAt is UTC.
// A duplicate code surfaces as gorm.ErrDuplicatedKey so the caller can retry
// with a fresh code.
func CreateServiceRequest(ctx context.Context, db *gorm.DB, code, clientDescription, vehicleID, categoryID, providerID string) (*domain.ServiceRequest, error) {
	r := &domain.ServiceRequest{
		ID:          uuid.NewString(),
		Code:        code,
		Description: clientDescription,
		Status:      domain.StatusPending,
		VehicleID:   vehicleID,
		CategoryID:  categoryID,
		ProviderID:  providerID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetServiceRequest fetches a single request by ID, or ErrNotFound.
func GetServiceRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ServiceRequest, error) {
	var r domain.ServiceRequest
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListAvailableRequests returns all pending, unassigned requests ordered
// newest-first. It returns an empty slice when nothing is open.
func ListAvailableRequests(ctx context.Context, db *gorm.DB) ([]domain.ServiceRequest, error) {
	var out []domain.ServiceRequest
	err := db.WithContext(ctx).
		Where("status = ? AND provider_id = ?", domain.StatusPending, "").
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListRequestsByVehicles returns requests raised against any of the given
// vehicles, newest-first. Used for the client's own history.
func ListRequestsByVehicles(ctx context.Context, db *gorm.DB, vehicleIDs []string) ([]domain.ServiceRequest, error) {
	if len(vehicleIDs) == 0 {
		return []domain.ServiceRequest{}, nil
	}
	var out []domain.ServiceRequest
	err := db.WithContext(ctx).
		Where("vehicle_id IN ?", vehicleIDs).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListRequestsByProvider returns requests assigned to providerID,
// newest-first. Used for the provider's history.
func ListRequestsByProvider(ctx context.Context, db *gorm.DB, providerID string) ([]domain.ServiceRequest, error) {
	var out []domain.ServiceRequest
	err := db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ClaimRequest conditionally moves a pending request into the hands of
// providerID in one statement. The update only applies while the request is
// still pending and either unassigned or already assigned to the same
// provider, which makes concurrent claims race-safe: exactly one UPDATE
// matches. Returns the number of rows affected.
//
// updates must include the new status; it may also set amount.
func ClaimRequest(ctx context.Context, db *gorm.DB, id, providerID string, updates map[string]any) (int64, error) {
	updates["provider_id"] = providerID
	res := db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Where("id = ? AND status = ? AND (provider_id = ? OR provider_id = ?)",
			id, domain.StatusPending, "", providerID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// UpdateRequestStatus transitions a request from exactly `from` to `to`,
// applying extra column updates atomically. RowsAffected is zero when the
// request has already moved on, which callers map to an invalid-state error.
func UpdateRequestStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.Status, extra map[string]any) (int64, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// SetRating writes the one-time client evaluation. The guard on `rating IS
// NULL` makes the write at-most-once even under concurrent raters.
func SetRating(ctx context.Context, db *gorm.DB, id string, rating int, comment string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Where("id = ? AND status = ? AND rating IS NULL", id, domain.StatusCompleted).
		Updates(map[string]any{"rating": rating, "comment": comment})
	return res.RowsAffected, res.Error
}
