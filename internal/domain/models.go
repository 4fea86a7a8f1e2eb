// Package domain defines the persistence models for service requests, chats,
// messages, and the directory entities they reference. These types are mapped
// with GORM and form the core data layer of the marketplace backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// ServiceRequest represents one repair/maintenance request raised by a client
// for one of their vehicles. It carries the lifecycle status and, once a
// provider engages, the negotiated amount and eventually the client's rating.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Code: human-shareable short code, 8 uppercase alphanumerics, unique.
//   - Description: free-text problem description supplied by the client.
//   - Status: lifecycle status (see status.go for the transition table).
//   - Amount: provider-proposed price; nil until a proposal exists.
//   - Rating / Comment: client evaluation, settable exactly once after
//     completion. Rating is nil until then.
//   - VehicleID / CategoryID: references to the requesting vehicle and the
//     problem-type category.
//   - ProviderID: assigned provider; empty string while unassigned.
type ServiceRequest struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Code        string         `json:"code"        gorm:"type:char(8);not null;uniqueIndex:ux_request_code"`
	Description string         `json:"description" gorm:"type:text;not null"`
	Status      Status         `json:"status"      gorm:"type:varchar(16);not null;index"`
	Amount      *float64       `json:"amount,omitempty"`
	Rating      *int           `json:"rating,omitempty"  gorm:"check:rating IS NULL OR (rating >= 1 AND rating <= 5)"`
	Comment     string         `json:"comment,omitempty" gorm:"type:varchar(500)"`
	VehicleID   string         `json:"vehicle_id"  gorm:"type:char(36);not null;index"`
	CategoryID  string         `json:"category_id" gorm:"type:char(36);not null"`
	ProviderID  string         `json:"provider_id,omitempty" gorm:"type:varchar(64);not null;default:'';index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for ServiceRequest.
func (ServiceRequest) TableName() string { return "service_requests" }

// Assigned reports whether a provider currently holds this request.
func (r *ServiceRequest) Assigned() bool { return r.ProviderID != "" }

// Chat is a persistent conversation container between one client and one
// provider, optionally scoped to one service request.
//
// ServiceID is the empty string for pre-sales chats (no linked request). The
// composite unique index makes EnsureChat an atomic insert-if-absent: storing
// '' instead of NULL keeps the index effective on engines where NULLs are
// distinct, and structurally limits a pair to one service-less chat.
type Chat struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	ClientID   string         `json:"client_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_chat_triple,priority:1;index:idx_chat_client"`
	ProviderID string         `json:"provider_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_chat_triple,priority:2;index:idx_chat_provider"`
	ServiceID  string         `json:"service_id,omitempty" gorm:"type:char(36);not null;default:'';uniqueIndex:ux_chat_triple,priority:3;index:idx_chat_service"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// IsParticipant reports whether subjectID is the client or provider side of
// the chat.
func (c *Chat) IsParticipant(subjectID string) bool {
	return c.ClientID == subjectID || c.ProviderID == subjectID
}

// Message is a single utterance within a chat. The sender is recorded by
// subject id only; whether it was the client or the provider is resolved
// against the chat at read time. Messages are immutable once created.
type Message struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	ChatID    string         `json:"chat_id"   gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	SenderID  string         `json:"sender_id" gorm:"type:varchar(64);not null"`
	Content   string         `json:"content"   gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_chat_msgs,priority:2"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Chat is the parent conversation. Messages are cascade-deleted if
	// their chat is ever removed.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

//
// Directory entities. The core only needs existence/ownership checks and
// display names; registration and profile management live elsewhere.
//

// User is a client account as seen by the core.
type User struct {
	ID        string    `json:"id"   gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Provider is a service provider account as seen by the core.
type Provider struct {
	ID        string    `json:"id"   gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Provider.
func (Provider) TableName() string { return "providers" }

// Vehicle belongs to a client; service requests always reference one.
type Vehicle struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	OwnerID   string    `json:"owner_id" gorm:"type:varchar(64);not null;index"`
	Plate     string    `json:"plate"    gorm:"type:varchar(16)"`
	Model     string    `json:"model"    gorm:"type:varchar(128)"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Vehicle.
func (Vehicle) TableName() string { return "vehicles" }

// Category is a problem-type category (e.g. brakes, electrical).
type Category struct {
	ID   string `json:"id"   gorm:"type:char(36);primaryKey"`
	Name string `json:"name" gorm:"type:varchar(128);not null"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }
