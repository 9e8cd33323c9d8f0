package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeTransfer, TransactionTypeDeposit, TransactionTypeWithdrawal:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusRolledBack TransactionStatus = "ROLLED_BACK"
)

// Account is a ledger row. Balance only changes through Credit and Debit.
type Account struct {
	ID            string          `json:"accountId"`
	AccountNumber string          `json:"accountNumber"`
	CustomerName  string          `json:"customerName"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
	UpdatedAt     time.Time       `json:"updatedTimestamp"`
}

func (a *Account) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: credit amount must be positive", ErrValidation)
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// Touch stamps a change made at now. UpdatedAt moves forward by at least a
// microsecond on every change, even when clocks disagree, because it versions
// the account's read model.
func (a *Account) Touch(now time.Time) {
	next := now.UTC().Truncate(time.Microsecond)
	if floor := a.UpdatedAt.Add(time.Microsecond); next.Before(floor) {
		next = floor
	}
	a.UpdatedAt = next
}

// Debit never takes the balance below zero.
func (a *Account) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: debit amount must be positive", ErrValidation)
	}
	if a.Balance.LessThan(amount) {
		return fmt.Errorf("%w: account %s has %s, needs %s", ErrInsufficientFunds, a.ID, a.Balance.StringFixed(2), amount.StringFixed(2))
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Transaction is the single record of a money movement. FromAccountID and
// ToAccountID are set for transfers, AccountID for deposits and withdrawals.
type Transaction struct {
	ID            string            `json:"transactionId"`
	Type          TransactionType   `json:"transactionType"`
	FromAccountID string            `json:"fromAccountId,omitempty"`
	ToAccountID   string            `json:"toAccountId,omitempty"`
	AccountID     string            `json:"accountId,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdTimestamp"`
	UpdatedAt     time.Time         `json:"updatedTimestamp"`
}

// AccountIDs returns the participants in the order they must be checked.
func (t *Transaction) AccountIDs() []string {
	if t.Type == TransactionTypeTransfer {
		return []string{t.FromAccountID, t.ToAccountID}
	}
	return []string{t.AccountID}
}

// Validate checks the fields every record needs regardless of who created it.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrValidation)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: invalid transaction type %q", ErrValidation, t.Type)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !t.Amount.Equal(t.Amount.Round(2)) {
		return fmt.Errorf("%w: amount has more than two decimal places", ErrValidation)
	}
	switch t.Type {
	case TransactionTypeTransfer:
		if t.FromAccountID == "" || t.ToAccountID == "" {
			return fmt.Errorf("%w: transfer requires fromAccountId and toAccountId", ErrValidation)
		}
		if t.FromAccountID == t.ToAccountID {
			return fmt.Errorf("%w: cannot transfer to the same account", ErrValidation)
		}
	default:
		if t.AccountID == "" {
			return fmt.Errorf("%w: %s requires accountId", ErrValidation, t.Type)
		}
	}
	return nil
}

// SameRequest reports whether other describes the same operation, ignoring
// status and timestamps.
func (t *Transaction) SameRequest(other *Transaction) bool {
	return t.Type == other.Type &&
		t.FromAccountID == other.FromAccountID &&
		t.ToAccountID == other.ToAccountID &&
		t.AccountID == other.AccountID &&
		t.Amount.Equal(other.Amount)
}

// Rank orders statuses along the lifecycle.
func (s TransactionStatus) Rank() int {
	switch s {
	case StatusCompleted:
		return 1
	case StatusRolledBack:
		return 2
	}
	return 0
}

// CanTransitionTo encodes PENDING -> COMPLETED -> ROLLED_BACK.
func (t *Transaction) CanTransitionTo(next TransactionStatus) bool {
	switch t.Status {
	case StatusPending:
		return next == StatusCompleted
	case StatusCompleted:
		return next == StatusRolledBack
	}
	return false
}

func (t *Transaction) TransitionTo(next TransactionStatus, at time.Time) error {
	if !t.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = at
	return nil
}
