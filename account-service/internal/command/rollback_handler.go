package command

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/banking/account-service/internal/repository"
	"github.com/eaglebank/banking/shared/events"
	"github.com/eaglebank/banking/shared/ledger"
	"github.com/eaglebank/banking/shared/models"
)

// RollbackHandler compensates COMPLETED transactions. A rollback for a record
// in any other state is a logged no-op, and a rollback never emits an event.
type RollbackHandler struct {
	store  ledger.Store
	views  *repository.ViewRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewRollbackHandler(store ledger.Store, views *repository.ViewRepository, logger *zap.Logger) *RollbackHandler {
	return &RollbackHandler{
		store:  store,
		views:  views,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HandleRollbackEvent is the consumer entry point for the rollback topic.
func (h *RollbackHandler) HandleRollbackEvent(ctx context.Context, msg events.Message) error {
	event, err := events.DecodeTransactionEvent(msg)
	if err != nil {
		h.logger.Error("dropping undecodable rollback", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if event.EventType != events.Rollback {
		h.logger.Debug("ignoring event", zap.String("event_type", event.EventType))
		return nil
	}

	log := h.logger.With(zap.String("transaction_id", event.TransactionID))

	outcome, err := h.Rollback(ctx, event.TransactionID)
	if err != nil {
		if isDomainError(err) {
			log.Warn("rollback rejected", zap.Error(err))
			return nil
		}
		log.Error("rollback failed, awaiting redelivery", zap.Error(err))
		return err
	}

	log.Info("rollback processed", zap.Stringer("outcome", outcome))
	return nil
}

// Rollback reverses a COMPLETED transaction using the amount stored on its
// record. The inverse debit obeys the same no-negative rule as any debit: if
// the funds have since moved on, the rollback fails with
// ErrInsufficientFunds and the record stays COMPLETED.
func (h *RollbackHandler) Rollback(ctx context.Context, transactionID string) (Outcome, error) {
	if transactionID == "" {
		return 0, fmt.Errorf("%w: transaction id is required", models.ErrValidation)
	}

	var (
		outcome  Outcome
		reverted *models.Transaction
		accounts []*models.Account
	)
	err := h.store.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		outcome, reverted, accounts = 0, nil, nil

		txn, err := tx.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status != models.StatusCompleted {
			h.logger.Info("rollback not applicable",
				zap.String("transaction_id", txn.ID), zap.String("status", string(txn.Status)))
			outcome = OutcomeSkipped
			return nil
		}

		locked, err := tx.LockAccounts(ctx, txn.AccountIDs()...)
		if err != nil {
			return err
		}

		touched, err := applyInverse(txn, locked)
		if err != nil {
			return err
		}

		now := h.now()
		for _, account := range touched {
			account.Touch(now)
			if err := tx.SaveAccount(ctx, account); err != nil {
				return err
			}
		}
		if err := txn.TransitionTo(models.StatusRolledBack, now); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, txn); err != nil {
			return err
		}

		outcome, reverted, accounts = OutcomeRolledBack, txn, touched
		return nil
	})
	if err != nil {
		return 0, err
	}

	if outcome == OutcomeRolledBack {
		h.views.Project(ctx, reverted, accounts...)
	}
	return outcome, nil
}

// applyInverse undoes txn on the locked accounts, debiting first.
func applyInverse(txn *models.Transaction, accounts map[string]*models.Account) ([]*models.Account, error) {
	switch txn.Type {
	case models.TransactionTypeTransfer:
		from, to := accounts[txn.FromAccountID], accounts[txn.ToAccountID]
		if err := to.Debit(txn.Amount); err != nil {
			return nil, err
		}
		if err := from.Credit(txn.Amount); err != nil {
			return nil, err
		}
		return []*models.Account{from, to}, nil
	case models.TransactionTypeDeposit:
		account := accounts[txn.AccountID]
		if err := account.Debit(txn.Amount); err != nil {
			return nil, err
		}
		return []*models.Account{account}, nil
	case models.TransactionTypeWithdrawal:
		account := accounts[txn.AccountID]
		if err := account.Credit(txn.Amount); err != nil {
			return nil, err
		}
		return []*models.Account{account}, nil
	}
	return nil, fmt.Errorf("%w: unsupported transaction type %q", models.ErrValidation, txn.Type)
}
