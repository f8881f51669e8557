package services

import "errors"

// Validation errors are surfaced synchronously, before any write happens.
var (
	ErrEmptyImage      = errors.New("image payload is required")
	ErrPartialLocation = errors.New("latitude and longitude must be supplied together")
	ErrNoIdentity      = errors.New("no user identity")
	ErrBadDirection    = errors.New("vote direction must be up or down")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrNotOwner      = errors.New("submission belongs to another user")
	ErrAlreadySynced = errors.New("submission already synced")
)
