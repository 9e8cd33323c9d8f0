package cqrs

import "github.com/shopspring/decimal"

// TransactionID is optional on every initiate command. When empty the
// orchestrator generates one; when set it is the caller's idempotency key.

type InitiateTransferCommand struct {
	TransactionID string
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
}

type InitiateDepositCommand struct {
	TransactionID string
	AccountID     string
	Amount        decimal.Decimal
}

type InitiateWithdrawalCommand struct {
	TransactionID string
	AccountID     string
	Amount        decimal.Decimal
}

type RequestRollbackCommand struct {
	TransactionID string
}
