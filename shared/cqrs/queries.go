package cqrs

// GetBalanceQuery fetches the current balance of one account.
type GetBalanceQuery struct {
	AccountID string
}

// GetTransactionQuery fetches the status of a single transaction.
type GetTransactionQuery struct {
	TransactionID string
}
