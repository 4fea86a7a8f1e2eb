// Package services defines the business logic for the service request
// lifecycle and the chat registry. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler/gateway layer.
package services

import "errors"

var (
	// ErrNotFound indicates that a referenced entity (request, chat,
	// vehicle, category, provider) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates that the caller lacks the relationship or
	// role required to act on the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when an operation is illegal for the
	// request's current lifecycle status.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrConflict is returned when a concurrent claim race was lost, e.g.
	// two providers proposing on the same pending request.
	ErrConflict = errors.New("request already claimed")

	// ErrValidation is returned for malformed input (empty description,
	// rating out of range, empty message content, ...).
	ErrValidation = errors.New("invalid input")

	// ErrAlreadyRated is returned when a client attempts to rate a request
	// a second time.
	ErrAlreadyRated = errors.New("request already rated")
)

// Persistence I/O failures have no sentinel of their own: the underlying
// driver error propagates unchanged, and handlers map anything outside the
// sentinels above to an internal server error. Multi-step operations wrap
// their writes in a transaction, so a store failure mid-operation never
// leaves partial state behind.
