package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidProvider is returned when a provider tag is not one of the
	// known generation backends.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidState is returned when a generation state is not valid.
	ErrInvalidState = errors.New("invalid generation state")

	// ErrInvalidCategory is returned when a generation category is not valid.
	ErrInvalidCategory = errors.New("invalid generation category")

	// ErrAmbiguousOwner is returned when both a registered user and a chat
	// identity are set on the same record.
	ErrAmbiguousOwner = errors.New("owner cannot be both a registered user and a chat identity")
)
