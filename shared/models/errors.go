package models

import "errors"

var (
	// ErrValidation marks bad input. Nothing was persisted or published.
	ErrValidation = errors.New("validation failed")
	// ErrAccountNotFound is wrapped with the missing account id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTransactionNotFound is wrapped with the missing transaction id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrDuplicateTransaction is returned by the store when the id is already taken.
	ErrDuplicateTransaction = errors.New("transaction already exists")
	// ErrIdempotencyConflict is returned when a caller reuses a transaction id for a different request.
	ErrIdempotencyConflict = errors.New("transaction id reused with different parameters")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidTransition   = errors.New("invalid status transition")
	// ErrInitiationFailed wraps infrastructure failures before an intent was published.
	ErrInitiationFailed = errors.New("transaction initiation failed")
)
