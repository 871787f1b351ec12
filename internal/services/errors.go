package services

import "errors"

var (
	// ErrItemNotFound is returned when the referenced item does not exist.
	ErrItemNotFound = errors.New("item not found")
	// ErrSelfClaim is returned when a user tries to claim an item they posted.
	ErrSelfClaim = errors.New("cannot claim own item")
	// ErrAlreadyClaimed is returned when the item is no longer active.
	ErrAlreadyClaimed = errors.New("item already claimed")
	// ErrTimeout is returned when the store did not answer within the configured bound.
	// The operation may be retried.
	ErrTimeout = errors.New("store timeout")

	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username or email already registered")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrStorageDisabled    = errors.New("image storage is not configured")
	ErrImageNotFound      = errors.New("image not found")
)
