// Package ledger persists accounts and transaction records.
//
// Balance changes always happen inside RunInTx: the unit of work locks the
// transaction row and the account rows it touches, so concurrent work on the
// same account is serialised while work on different accounts runs freely.
package ledger

import (
	"context"

	"github.com/eaglebank/banking/shared/models"
)

type Store interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	// CreateAccountIfAbsent returns the stored account, creating it from
	// account when the id is unknown.
	CreateAccountIfAbsent(ctx context.Context, account *models.Account) (*models.Account, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// CreateTransaction returns models.ErrDuplicateTransaction if the id exists.
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	// RunInTx commits only if fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is a unit of work. Lock the transaction row first, then accounts with a
// single LockAccounts call.
type Tx interface {
	LockTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// LockAccounts locks rows in sorted id order. A missing id is reported in
	// argument order.
	LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error
	SaveTransaction(ctx context.Context, txn *models.Transaction) error
}
