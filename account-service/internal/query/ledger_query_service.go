package query

import (
	"context"
	"fmt"

	"github.com/eaglebank/banking/shared/cqrs"
	"github.com/eaglebank/banking/shared/ledger"
	"github.com/eaglebank/banking/shared/models"
)

// LedgerQueryService reads straight from the ledger, bypassing the Redis
// views. Operators use it to check what the views should say.
type LedgerQueryService struct {
	store ledger.Store
}

func NewLedgerQueryService(store ledger.Store) *LedgerQueryService {
	return &LedgerQueryService{store: store}
}

func (s *LedgerQueryService) GetAccount(ctx context.Context, q cqrs.GetBalanceQuery) (*models.Account, error) {
	if q.AccountID == "" {
		return nil, fmt.Errorf("%w: account id is required", models.ErrValidation)
	}
	return s.store.GetAccount(ctx, q.AccountID)
}

func (s *LedgerQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.Transaction, error) {
	if q.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", models.ErrValidation)
	}
	return s.store.GetTransaction(ctx, q.TransactionID)
}
