package api

import (
	"errors"
	"net/http"

	"github.com/veloxi/forge-api/internal/domain"
	"github.com/veloxi/forge-api/internal/service"
	"github.com/veloxi/forge-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types or messages to clients.
func MapErrorToStatusCode(err error) int {
	var cooldownErr *service.CooldownError

	switch {
	// Throttling
	case errors.As(err, &cooldownErr):
		return http.StatusTooManyRequests

	// Not found errors
	case errors.Is(err, store.ErrGenerationNotFound),
		errors.Is(err, store.ErrTextureNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrTaskIDExists):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, service.ErrInvalidMode),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrAmbiguousOwner),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var cooldownErr *service.CooldownError

	switch {
	// Cooldown messages are written for requesters; pass them through.
	case errors.As(err, &cooldownErr):
		return cooldownErr.Error()

	case errors.Is(err, store.ErrGenerationNotFound):
		return "Generation not found"

	case errors.Is(err, store.ErrTextureNotFound):
		return "Texture not found"

	case errors.Is(err, store.ErrTaskIDExists):
		return "A generation with this task ID already exists"

	case errors.Is(err, service.ErrInvalidMode):
		return "Unknown generation mode"

	case errors.Is(err, domain.ErrAmbiguousOwner):
		return "At most one of user ID and chat ID may be set"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid identifier"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}
