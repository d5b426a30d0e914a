package domain

import "errors"

// Sentinel errors describing why a marketplace operation was refused. Services
// wrap these with %w and callers classify them with errors.Is; the HTTP layer
// maps each one to a status code.
var (
	// ErrNotFound indicates a referenced transaction or party does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the acting party is not a party to the
	// transaction, or lacks the role the requested transition demands.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition indicates the requested status is not a legal
	// successor of the transaction's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidState indicates the operation requires a different
	// transaction status than the current one.
	ErrInvalidState = errors.New("invalid transaction state")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a duplicate review for the same reviewer and
	// transaction.
	ErrConflict = errors.New("conflict")

	// ErrStorageUnavailable indicates a transient storage failure. Callers
	// may retry; the core never does.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
