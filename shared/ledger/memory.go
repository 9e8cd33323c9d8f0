package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eaglebank/banking/shared/models"
)

// MemoryStore keeps the ledger in process. Row locks are per-key mutexes and
// writes made inside RunInTx are staged until fn returns nil.
type MemoryStore struct {
	mu           sync.Mutex
	accounts     map[string]models.Account
	transactions map[string]models.Transaction
	rows         keyedMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]models.Account),
		transactions: make(map[string]models.Transaction),
		rows:         keyedMutex{locks: make(map[string]*sync.Mutex)},
	}
}

// UpsertAccount writes an account directly, bypassing row locks. Used to
// seed balances.
func (s *MemoryStore) UpsertAccount(account *models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = *account
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrAccountNotFound, id)
	}
	return &account, nil
}

func (s *MemoryStore) CreateAccountIfAbsent(_ context.Context, account *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.accounts[account.ID]; ok {
		return &existing, nil
	}
	s.accounts[account.ID] = *account
	created := *account
	return &created, nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, id)
	}
	return &txn, nil
}

func (s *MemoryStore) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[txn.ID]; ok {
		return fmt.Errorf("%w: %s", models.ErrDuplicateTransaction, txn.ID)
	}
	s.transactions[txn.ID] = *txn
	return nil
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memoryTx{
		store:        s,
		held:         make(map[string]func()),
		accounts:     make(map[string]models.Account),
		transactions: make(map[string]models.Transaction),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memoryTx struct {
	store        *MemoryStore
	held         map[string]func()
	order        []string
	accounts     map[string]models.Account
	transactions map[string]models.Transaction
}

func (tx *memoryTx) lock(key string) {
	if _, ok := tx.held[key]; ok {
		return
	}
	tx.held[key] = tx.store.rows.lock(key)
	tx.order = append(tx.order, key)
}

func (tx *memoryTx) release() {
	for i := len(tx.order) - 1; i >= 0; i-- {
		tx.held[tx.order[i]]()
	}
}

func (tx *memoryTx) commit() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for id, account := range tx.accounts {
		tx.store.accounts[id] = account
	}
	for id, txn := range tx.transactions {
		tx.store.transactions[id] = txn
	}
}

func (tx *memoryTx) LockTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx.lock(transactionRowKey(id))
	if staged, ok := tx.transactions[id]; ok {
		return &staged, nil
	}
	return tx.store.GetTransaction(ctx, id)
}

func (tx *memoryTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	for _, id := range sortedUnique(ids) {
		tx.lock(accountRowKey(id))
	}
	accounts := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		if staged, ok := tx.accounts[id]; ok {
			accounts[id] = &staged
			continue
		}
		account, err := tx.store.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = account
	}
	return accounts, nil
}

func (tx *memoryTx) SaveAccount(_ context.Context, account *models.Account) error {
	if _, ok := tx.held[accountRowKey(account.ID)]; !ok {
		return fmt.Errorf("account %s saved without holding its lock", account.ID)
	}
	tx.accounts[account.ID] = *account
	return nil
}

func (tx *memoryTx) SaveTransaction(_ context.Context, txn *models.Transaction) error {
	if _, ok := tx.held[transactionRowKey(txn.ID)]; !ok {
		return fmt.Errorf("transaction %s saved without holding its lock", txn.ID)
	}
	tx.transactions[txn.ID] = *txn
	return nil
}

func accountRowKey(id string) string     { return "account:" + id }
func transactionRowKey(id string) string { return "transaction:" + id }

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
