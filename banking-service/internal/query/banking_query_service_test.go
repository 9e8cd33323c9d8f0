package query

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eaglebank/banking/banking-service/internal/repository"
	"github.com/eaglebank/banking/shared/cqrs"
	"github.com/eaglebank/banking/shared/ledger"
	"github.com/eaglebank/banking/shared/models"
)

func newQueryService(t *testing.T) (*BankingQueryService, *ledger.MemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := ledger.NewMemoryStore()
	store.UpsertAccount(&models.Account{ID: "a1", AccountNumber: "ACC00A1", Balance: decimal.RequireFromString("1000.00")})
	require.NoError(t, store.CreateTransaction(context.Background(), &models.Transaction{
		ID: "t1", Type: models.TransactionTypeDeposit, AccountID: "a1",
		Amount: decimal.RequireFromString("10"), Status: models.StatusPending,
	}))

	svc := NewBankingQueryService(
		repository.NewAccountReadRepository(store, client, time.Minute, zap.NewNop()),
		repository.NewTransactionReadRepository(store, client, time.Minute, zap.NewNop()),
	)
	return svc, store, mr
}

func TestGetBalanceReadsThroughCache(t *testing.T) {
	svc, store, mr := newQueryService(t)
	ctx := context.Background()

	view, err := svc.GetBalance(ctx, cqrs.GetBalanceQuery{AccountID: "a1"})
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, mr.Exists(models.AccountViewKey("a1")), "miss should warm the cache")

	// The view is what the account service refreshes after each commit; the
	// cached copy wins over a direct ledger write.
	store.UpsertAccount(&models.Account{ID: "a1", Balance: decimal.RequireFromString("1.00")})
	view, err = svc.GetBalance(ctx, cqrs.GetBalanceQuery{AccountID: "a1"})
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(decimal.RequireFromString("1000.00")))

	mr.Del(models.AccountViewKey("a1"))
	view, err = svc.GetBalance(ctx, cqrs.GetBalanceQuery{AccountID: "a1"})
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(decimal.RequireFromString("1.00")))
}

func TestGetBalanceErrors(t *testing.T) {
	svc, _, _ := newQueryService(t)

	_, err := svc.GetBalance(context.Background(), cqrs.GetBalanceQuery{AccountID: "ghost"})
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	_, err = svc.GetBalance(context.Background(), cqrs.GetBalanceQuery{})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestGetTransaction(t *testing.T) {
	svc, _, mr := newQueryService(t)
	ctx := context.Background()

	view, err := svc.GetTransaction(ctx, cqrs.GetTransactionQuery{TransactionID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, view.Status)
	assert.True(t, mr.Exists(models.TransactionViewKey("t1")))

	_, err = svc.GetTransaction(ctx, cqrs.GetTransactionQuery{TransactionID: "t2"})
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}
