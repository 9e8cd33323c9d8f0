package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewTransactionID returns a fresh idempotency key for a request that did not
// bring its own.
func NewTransactionID() string {
	return uuid.NewString()
}

// AccountNumberFor derives the display number of a lazily created account:
// "ACC" followed by the last four characters of its id, upper-cased.
func AccountNumberFor(accountID string) string {
	suffix := accountID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "ACC" + strings.ToUpper(suffix)
}

func CustomerNameFor(accountID string) string {
	return "Portfolio Customer " + accountID
}

// NormalizeID trims surrounding whitespace from a client supplied id.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}
