// Package handlers defines the HTTP-layer error codes used across all API
// endpoints, plus the translation from service-level sentinel errors to HTTP
// responses.
//
// Codes are lowercase snake_case and stable: clients branch on them for
// programmatic error handling, the message is for humans.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-servicehub-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeInvalidState = "invalid_state"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeAlreadyRated     = "already_rated"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failFromService maps a service-level error onto the HTTP envelope. The
// mapping is total: anything outside the known sentinels is a 500.
//
//	ErrValidation   -> 400 bad_request
//	ErrNotFound     -> 404 not_found
//	ErrForbidden    -> 403 forbidden
//	ErrInvalidState -> 409 invalid_state
//	ErrConflict     -> 409 conflict
//	ErrAlreadyRated -> 409 already_rated
func failFromService(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msg)
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, msg)
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, msg)
	case errors.Is(err, services.ErrAlreadyRated):
		fail(c, http.StatusConflict, ErrCodeAlreadyRated, msg)
	case errors.Is(err, services.ErrInvalidState):
		fail(c, http.StatusConflict, ErrCodeInvalidState, msg)
	case errors.Is(err, services.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, msg)
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
