package repository

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eaglebank/banking/shared/models"
	sharedredis "github.com/eaglebank/banking/shared/redis"
)

// ViewRepository maintains the Redis read models the banking service serves
// balances and status from. Writes happen after the ledger commit, so a lost
// write only leaves a stale view until the next commit or TTL expiry.
type ViewRepository struct {
	accounts     *sharedredis.ViewCache[models.AccountView]
	transactions *sharedredis.ViewCache[models.TransactionView]
}

func NewViewRepository(redisClient *goredis.Client, ttl time.Duration, logger *zap.Logger) *ViewRepository {
	return &ViewRepository{
		accounts:     sharedredis.NewViewCache[models.AccountView](redisClient, ttl, logger),
		transactions: sharedredis.NewViewCache[models.TransactionView](redisClient, ttl, logger),
	}
}

// Project writes the committed transaction and the accounts it touched.
// Consumers can finish out of order; a view older than the cached one is
// dropped.
func (r *ViewRepository) Project(ctx context.Context, txn *models.Transaction, accounts ...*models.Account) {
	view := models.NewTransactionView(txn)
	r.transactions.Set(ctx, models.TransactionViewKey(txn.ID), view, view.Version())
	for _, account := range accounts {
		view := models.NewAccountView(account)
		r.accounts.Set(ctx, models.AccountViewKey(account.ID), view, view.Version())
	}
}

func (r *ViewRepository) Account(ctx context.Context, id string) (*models.AccountView, bool) {
	return r.accounts.Get(ctx, models.AccountViewKey(id))
}

func (r *ViewRepository) Transaction(ctx context.Context, id string) (*models.TransactionView, bool) {
	return r.transactions.Get(ctx, models.TransactionViewKey(id))
}
