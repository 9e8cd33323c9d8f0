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

// AccountReadRepository serves account views. Redis is the primary read store,
// written by the account service after every commit; the ledger is the
// fallback.
type AccountReadRepository struct {
	store ledger.Store
	cache *sharedredis.ViewCache[models.AccountView]
}

func NewAccountReadRepository(store ledger.Store, redisClient *goredis.Client, ttl time.Duration, logger *zap.Logger) *AccountReadRepository {
	return &AccountReadRepository{
		store: store,
		cache: sharedredis.NewViewCache[models.AccountView](redisClient, ttl, logger),
	}
}

func (r *AccountReadRepository) GetByID(ctx context.Context, id string) (*models.AccountView, error) {
	if view, ok := r.cache.Get(ctx, models.AccountViewKey(id)); ok {
		return view, nil
	}

	account, err := r.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	view := models.NewAccountView(account)
	r.cache.Set(ctx, models.AccountViewKey(id), view, view.Version())
	return view, nil
}
