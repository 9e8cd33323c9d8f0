package query

import (
	"context"
	"fmt"

	"github.com/eaglebank/banking/banking-service/internal/repository"
	"github.com/eaglebank/banking/shared/cqrs"
	"github.com/eaglebank/banking/shared/models"
)

// BankingQueryService serves balance and status reads from the Redis read
// models, falling back to the ledger on a miss.
type BankingQueryService struct {
	accounts     *repository.AccountReadRepository
	transactions *repository.TransactionReadRepository
}

func NewBankingQueryService(accounts *repository.AccountReadRepository, transactions *repository.TransactionReadRepository) *BankingQueryService {
	return &BankingQueryService{accounts: accounts, transactions: transactions}
}

func (s *BankingQueryService) GetBalance(ctx context.Context, q cqrs.GetBalanceQuery) (*models.AccountView, error) {
	if q.AccountID == "" {
		return nil, fmt.Errorf("%w: account id is required", models.ErrValidation)
	}
	return s.accounts.GetByID(ctx, q.AccountID)
}

func (s *BankingQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	if q.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", models.ErrValidation)
	}
	return s.transactions.GetByID(ctx, q.TransactionID)
}
