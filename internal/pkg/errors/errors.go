package errors

import "errors"

// Shared application errors. Services wrap these with %w and context; handlers
// map them to HTTP statuses.
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned for authentication failures (bad token, bad credentials).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks rights for the action.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed or incomplete input.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken is returned when a session token is past its horizon.
	ErrExpiredToken = errors.New("token is expired")

	// ErrConflict is returned for state conflicts, including the account-link
	// uniqueness violation on (provider, provider_account_id, provider_instance).
	ErrConflict = errors.New("resource state conflict")
)
