// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file covers the directory entities (users, providers,
// vehicles, categories) that the core consults for existence and ownership
// checks and for display names. Their CRUD lives outside the core.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-servicehub-backend/internal/domain"
)

// GetVehicle fetches a vehicle by ID, or ErrNotFound.
func GetVehicle(ctx context.Context, db *gorm.DB, id string) (*domain.Vehicle, error) {
	var v domain.Vehicle
	if err := db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVehicleIDsByOwner returns the IDs of all vehicles owned by ownerID.
func ListVehicleIDsByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Vehicle{}).
		Where("owner_id = ?", ownerID).
		Pluck("id", &ids).Error
	return ids, err
}

// CategoryExists reports whether a category row exists for id.
func CategoryExists(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Category{}).
		Where("id = ?", id).
		Count(&n).Error
	return n > 0, err
}

// ProviderExists reports whether a provider row exists for id.
func ProviderExists(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Provider{}).
		Where("id = ?", id).
		Count(&n).Error
	return n > 0, err
}

// UserName returns the display name for a user id, or "" when unknown.
func UserName(ctx context.Context, db *gorm.DB, id string) (string, error) {
	var names []string
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Limit(1).
		Pluck("name", &names).Error
	if err != nil || len(names) == 0 {
		return "", err
	}
	return names[0], nil
}

// ProviderName returns the display name for a provider id, or "" when unknown.
func ProviderName(ctx context.Context, db *gorm.DB, id string) (string, error) {
	var names []string
	err := db.WithContext(ctx).
		Model(&domain.Provider{}).
		Where("id = ?", id).
		Limit(1).
		Pluck("name", &names).Error
	if err != nil || len(names) == 0 {
		return "", err
	}
	return names[0], nil
}
