package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountViewKeyPrefix     = "account:view:"
	TransactionViewKeyPrefix = "transaction:view:"
)

func AccountViewKey(accountID string) string { return AccountViewKeyPrefix + accountID }

func TransactionViewKey(transactionID string) string { return TransactionViewKeyPrefix + transactionID }

// AccountView is the read-optimised projection of an account, shared by both
// services through Redis.
type AccountView struct {
	AccountID     string          `json:"accountId"`
	AccountNumber string          `json:"accountNumber"`
	CustomerName  string          `json:"customerName"`
	Balance       decimal.Decimal `json:"balance"`
	UpdatedAt     time.Time       `json:"updatedTimestamp"`
}

// TransactionView is the read-optimised projection of a transaction, used for
// status polling.
type TransactionView struct {
	TransactionID string            `json:"transactionId"`
	Type          TransactionType   `json:"transactionType"`
	FromAccountID string            `json:"fromAccountId,omitempty"`
	ToAccountID   string            `json:"toAccountId,omitempty"`
	AccountID     string            `json:"accountId,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdTimestamp"`
	UpdatedAt     time.Time         `json:"updatedTimestamp"`
}

// Version increases with every committed change to the account.
func (v *AccountView) Version() int64 { return v.UpdatedAt.UnixMicro() }

// Version follows the status, which only moves forward.
func (v *TransactionView) Version() int64 { return int64(v.Status.Rank()) }

func NewAccountView(a *Account) *AccountView {
	return &AccountView{
		AccountID:     a.ID,
		AccountNumber: a.AccountNumber,
		CustomerName:  a.CustomerName,
		Balance:       a.Balance,
		UpdatedAt:     a.UpdatedAt,
	}
}

func NewTransactionView(t *Transaction) *TransactionView {
	return &TransactionView{
		TransactionID: t.ID,
		Type:          t.Type,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		AccountID:     t.AccountID,
		Amount:        t.Amount,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}
