package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/eaglebank/banking/shared/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(s *MemoryStore, id, balance string) {
	now := time.Now().UTC()
	s.UpsertAccount(&models.Account{
		ID: id, AccountNumber: "ACC" + id, CustomerName: "Customer " + id,
		Balance: decimal.RequireFromString(balance), CreatedAt: now, UpdatedAt: now,
	})
}

func TestMemoryStoreCreateTransactionDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	txn := &models.Transaction{ID: "t1", Type: models.TransactionTypeDeposit, AccountID: "a1", Amount: decimal.NewFromInt(1), Status: models.StatusPending}

	require.NoError(t, store.CreateTransaction(ctx, txn))
	err := store.CreateTransaction(ctx, txn)
	assert.ErrorIs(t, err, models.ErrDuplicateTransaction)

	_, err = store.GetTransaction(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}

func TestMemoryStoreCreateAccountIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedAccount(store, "a1", "1000.00")

	existing, err := store.CreateAccountIfAbsent(ctx, &models.Account{ID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "1000.00", existing.Balance.StringFixed(2))

	created, err := store.CreateAccountIfAbsent(ctx, &models.Account{ID: "a2", Balance: decimal.Zero})
	require.NoError(t, err)
	assert.True(t, created.Balance.IsZero())

	_, err = store.GetAccount(ctx, "a2")
	assert.NoError(t, err)
}

func TestMemoryStoreRunInTxDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedAccount(store, "a1", "100.00")

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		accounts, err := tx.LockAccounts(ctx, "a1")
		if err != nil {
			return err
		}
		a1 := accounts["a1"]
		if err := a1.Credit(decimal.NewFromInt(50)); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, a1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	a1, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "100.00", a1.Balance.StringFixed(2))
}

func TestMemoryStoreLockAccountsReportsFirstMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedAccount(store, "b", "1.00")

	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.LockAccounts(ctx, "z-missing", "a-missing", "b")
		return err
	})
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
	assert.Contains(t, err.Error(), "z-missing")
}

func TestMemoryStoreSaveRequiresLock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedAccount(store, "a1", "1.00")

	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.SaveAccount(ctx, &models.Account{ID: "a1"})
	})
	assert.Error(t, err)
}

func TestMemoryStoreConcurrentTransfersConserveMoney(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ids := []string{"a1", "a2", "a3"}
	for _, id := range ids {
		seedAccount(store, id, "1000.00")
	}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			from := ids[r.Intn(len(ids))]
			to := ids[r.Intn(len(ids))]
			if from == to {
				return
			}
			amount := decimal.NewFromInt(int64(r.Intn(100) + 1))
			_ = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
				accounts, err := tx.LockAccounts(ctx, from, to)
				if err != nil {
					return err
				}
				if err := accounts[from].Debit(amount); err != nil {
					return err
				}
				if err := accounts[to].Credit(amount); err != nil {
					return err
				}
				if err := tx.SaveAccount(ctx, accounts[from]); err != nil {
					return err
				}
				return tx.SaveAccount(ctx, accounts[to])
			})
		}(int64(i))
	}
	wg.Wait()

	total := decimal.Zero
	for _, id := range ids {
		account, err := store.GetAccount(ctx, id)
		require.NoError(t, err)
		assert.False(t, account.Balance.IsNegative(), fmt.Sprintf("%s went negative", id))
		total = total.Add(account.Balance)
	}
	assert.Equal(t, "3000.00", total.StringFixed(2))
}

func TestMemoryStoreConcurrentCreditsNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedAccount(store, "a1", "0")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
				accounts, err := tx.LockAccounts(ctx, "a1")
				if err != nil {
					return err
				}
				if err := accounts["a1"].Credit(decimal.NewFromInt(1)); err != nil {
					return err
				}
				return tx.SaveAccount(ctx, accounts["a1"])
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a1, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "100", a1.Balance.String())
}
