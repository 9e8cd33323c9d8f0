package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/banking/shared/models"
	"github.com/lib/pq"
)

// Schema is applied by EnsureSchema at service start-up.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id             TEXT PRIMARY KEY,
	account_number TEXT NOT NULL,
	customer_name  TEXT NOT NULL,
	balance        NUMERIC(15,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id               TEXT PRIMARY KEY,
	transaction_type TEXT NOT NULL,
	from_account_id  TEXT,
	to_account_id    TEXT,
	account_id       TEXT,
	amount           NUMERIC(15,2) NOT NULL CHECK (amount > 0),
	status           TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
`

const uniqueViolation = "23505"

const (
	accountColumns     = `id, account_number, customer_name, balance, created_at, updated_at`
	transactionColumns = `id, transaction_type, from_account_id, to_account_id, account_id, amount, status, created_at, updated_at`
)

// PostgresStore is the production ledger. Row locks come from
// SELECT ... FOR UPDATE inside a database transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects, pings and applies the schema. The caller owns the
// returned *sql.DB.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, *sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	store := NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, id), id)
}

func (s *PostgresStore) CreateAccountIfAbsent(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		account.ID, account.AccountNumber, account.CustomerName,
		account.Balance, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return s.GetAccount(ctx, account.ID)
}

func (s *PostgresStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(s.db.QueryRowContext(ctx, query, id), id)
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		txn.ID, string(txn.Type),
		nullString(txn.FromAccountID), nullString(txn.ToAccountID), nullString(txn.AccountID),
		txn.Amount, string(txn.Status), txn.CreatedAt, txn.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", models.ErrDuplicateTransaction, txn.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op once committed.
	defer sqlTx.Rollback()

	if err := fn(ctx, &postgresTx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) LockTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(t.tx.QueryRowContext(ctx, query, id), id)
}

func (t *postgresTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	rows, err := t.tx.QueryContext(ctx, query, pq.Array(sortedUnique(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	locked := make(map[string]*models.Account, len(ids))
	for rows.Next() {
		account, err := scanAccount(rows, "")
		if err != nil {
			return nil, err
		}
		locked[account.ID] = account
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}

	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrAccountNotFound, id)
		}
	}
	return locked, nil
}

func (t *postgresTx) SaveAccount(ctx context.Context, account *models.Account) error {
	query := `UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`
	result, err := t.tx.ExecContext(ctx, query, account.ID, account.Balance, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return expectOneRow(result, models.ErrAccountNotFound, account.ID)
}

func (t *postgresTx) SaveTransaction(ctx context.Context, txn *models.Transaction) error {
	query := `UPDATE transactions SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := t.tx.ExecContext(ctx, query, txn.ID, string(txn.Status), txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return expectOneRow(result, models.ErrTransactionNotFound, txn.ID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, id string) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID, &account.AccountNumber, &account.CustomerName,
		&account.Balance, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", models.ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func scanTransaction(row rowScanner, id string) (*models.Transaction, error) {
	var (
		txn                  models.Transaction
		txnType, status      string
		from, to, accountRef sql.NullString
	)
	err := row.Scan(
		&txn.ID, &txnType, &from, &to, &accountRef,
		&txn.Amount, &status, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	txn.Type = models.TransactionType(txnType)
	txn.Status = models.TransactionStatus(status)
	txn.FromAccountID = from.String
	txn.ToAccountID = to.String
	txn.AccountID = accountRef.String
	return &txn, nil
}

func expectOneRow(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
