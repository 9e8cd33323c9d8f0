package command

import (
	"errors"

	"github.com/eaglebank/banking/shared/models"
)

// Outcome is what a unit of work did with an event. Insufficient funds is an
// outcome, not an error: it routes the transaction to the rollback topic.
type Outcome int

const (
	OutcomeCompleted Outcome = iota + 1
	OutcomeInsufficientFunds
	OutcomeRolledBack
	// OutcomeSkipped means the record's status did not allow the step, so
	// nothing changed.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeInsufficientFunds:
		return "insufficient_funds"
	case OutcomeRolledBack:
		return "rolled_back"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// isDomainError reports errors that redelivery cannot fix. Consumers log and
// acknowledge these; anything else is left for redelivery.
func isDomainError(err error) bool {
	return errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrAccountNotFound) ||
		errors.Is(err, models.ErrTransactionNotFound) ||
		errors.Is(err, models.ErrInsufficientFunds) ||
		errors.Is(err, models.ErrInvalidTransition) ||
		errors.Is(err, models.ErrIdempotencyConflict)
}
