package repository

import (
	"context"
	"time"

	"github.com/eaglebank/banking/shared/ledger"
	"github.com/eaglebank/banking/shared/models"
	sharedredis "github.com/eaglebank/banking/shared/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TransactionReadRepository serves transaction status for polling clients,
// Redis first with the ledger as fallback.
type TransactionReadRepository struct {
	store ledger.Store
	cache *sharedredis.ViewCache[models.TransactionView]
}

func NewTransactionReadRepository(store ledger.Store, redisClient *goredis.Client, ttl time.Duration, logger *zap.Logger) *TransactionReadRepository {
	return &TransactionReadRepository{
		store: store,
		cache: sharedredis.NewViewCache[models.TransactionView](redisClient, ttl, logger),
	}
}

func (r *TransactionReadRepository) GetByID(ctx context.Context, id string) (*models.TransactionView, error) {
	if view, ok := r.cache.Get(ctx, models.TransactionViewKey(id)); ok {
		return view, nil
	}
	return r.Refresh(ctx, id)
}

// Refresh reloads the view from the ledger and caches it.
func (r *TransactionReadRepository) Refresh(ctx context.Context, id string) (*models.TransactionView, error) {
	txn, err := r.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	view := models.NewTransactionView(txn)
	r.CacheTransactionView(ctx, view)
	return view, nil
}

func (r *TransactionReadRepository) CacheTransactionView(ctx context.Context, view *models.TransactionView) {
	r.cache.Set(ctx, models.TransactionViewKey(view.TransactionID), view, view.Version())
}
