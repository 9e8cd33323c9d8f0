package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/banking/account-service/internal/repository"
	"github.com/eaglebank/banking/shared/events"
	"github.com/eaglebank/banking/shared/ledger"
	"github.com/eaglebank/banking/shared/models"
)

// TransactionProcessor applies intent events to the ledger. The PENDING to
// COMPLETED transition and the balance change commit together under the
// transaction row lock, so a redelivered intent finds the record settled and
// changes nothing.
type TransactionProcessor struct {
	store     ledger.Store
	views     *repository.ViewRepository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewTransactionProcessor(store ledger.Store, views *repository.ViewRepository, publisher events.Publisher, logger *zap.Logger) *TransactionProcessor {
	return &TransactionProcessor{
		store:     store,
		views:     views,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HandleTransactionEvent is the consumer entry point for the intent topic.
func (p *TransactionProcessor) HandleTransactionEvent(ctx context.Context, msg events.Message) error {
	event, err := events.DecodeTransactionEvent(msg)
	if err != nil {
		p.logger.Error("dropping undecodable intent", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if !events.IsIntent(event.EventType) {
		p.logger.Debug("ignoring event", zap.String("event_type", event.EventType))
		return nil
	}

	log := p.logger.With(zap.String("transaction_id", event.TransactionID), zap.String("event_type", event.EventType))

	outcome, err := p.Process(ctx, event)
	if err != nil {
		if isDomainError(err) {
			log.Warn("intent rejected", zap.Error(err))
			return nil
		}
		log.Error("intent processing failed, awaiting redelivery", zap.Error(err))
		return err
	}

	log.Info("intent processed", zap.Stringer("outcome", outcome))
	return nil
}

// Process applies one intent. Infrastructure errors are returned so the
// channel redelivers; every other result is an Outcome or a domain error.
func (p *TransactionProcessor) Process(ctx context.Context, event events.TransactionEvent) (Outcome, error) {
	requested := event.Transaction(p.now())
	if err := requested.Validate(); err != nil {
		return 0, err
	}

	// The banking service normally wrote the record already.
	if err := p.store.CreateTransaction(ctx, requested); err != nil && !errors.Is(err, models.ErrDuplicateTransaction) {
		return 0, fmt.Errorf("failed to record transaction %s: %w", requested.ID, err)
	}

	var (
		outcome  Outcome
		settled  *models.Transaction
		accounts []*models.Account
	)
	err := p.store.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		outcome, settled, accounts = 0, nil, nil

		txn, err := tx.LockTransaction(ctx, requested.ID)
		if err != nil {
			return err
		}
		if !txn.SameRequest(requested) {
			return fmt.Errorf("%w: intent for %s does not match the stored record", models.ErrIdempotencyConflict, txn.ID)
		}
		if txn.Status != models.StatusPending {
			outcome, settled = OutcomeSkipped, txn
			return nil
		}

		locked, err := tx.LockAccounts(ctx, txn.AccountIDs()...)
		if err != nil {
			return err
		}

		now := p.now()
		touched, err := applyIntent(txn, locked)
		if errors.Is(err, models.ErrInsufficientFunds) {
			// Nothing staged is saved; the record stays PENDING.
			outcome, settled = OutcomeInsufficientFunds, txn
			return nil
		}
		if err != nil {
			return err
		}

		for _, account := range touched {
			account.Touch(now)
			if err := tx.SaveAccount(ctx, account); err != nil {
				return err
			}
		}
		if err := txn.TransitionTo(models.StatusCompleted, now); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, txn); err != nil {
			return err
		}

		outcome, settled, accounts = OutcomeCompleted, txn, touched
		return nil
	})
	if err != nil {
		return 0, err
	}

	switch outcome {
	case OutcomeCompleted:
		p.views.Project(ctx, settled, accounts...)
		// The mutation is committed; a redelivery would be skipped, so a
		// failed publish is logged rather than retried.
		if err := p.publisher.Publish(ctx, events.CompletionEventsTopic, settled.ID, events.NewCompletedEvent(settled)); err != nil {
			p.logger.Error("failed to publish completion event",
				zap.String("transaction_id", settled.ID), zap.Error(err))
		}
	case OutcomeInsufficientFunds:
		p.logger.Warn("insufficient funds, requesting rollback",
			zap.String("transaction_id", settled.ID),
			zap.String("transaction_type", string(settled.Type)),
			zap.String("amount", settled.Amount.StringFixed(2)),
		)
		// The record is still PENDING, so a redelivery re-evaluates the intent
		// and reports a fresh ROLLBACK or completes if funds arrived since.
		if err := p.publisher.Publish(ctx, events.RollbackEventsTopic, settled.ID, events.NewRollbackEvent(settled)); err != nil {
			return 0, fmt.Errorf("failed to publish rollback event: %w", err)
		}
	case OutcomeSkipped:
		p.logger.Info("intent already applied",
			zap.String("transaction_id", settled.ID), zap.String("status", string(settled.Status)))
	}
	return outcome, nil
}

// applyIntent mutates the locked accounts in place and returns the ones to
// save. Debits are checked before anything is credited.
func applyIntent(txn *models.Transaction, accounts map[string]*models.Account) ([]*models.Account, error) {
	switch txn.Type {
	case models.TransactionTypeTransfer:
		from, to := accounts[txn.FromAccountID], accounts[txn.ToAccountID]
		if err := from.Debit(txn.Amount); err != nil {
			return nil, err
		}
		if err := to.Credit(txn.Amount); err != nil {
			return nil, err
		}
		return []*models.Account{from, to}, nil
	case models.TransactionTypeDeposit:
		account := accounts[txn.AccountID]
		if err := account.Credit(txn.Amount); err != nil {
			return nil, err
		}
		return []*models.Account{account}, nil
	case models.TransactionTypeWithdrawal:
		account := accounts[txn.AccountID]
		if err := account.Debit(txn.Amount); err != nil {
			return nil, err
		}
		return []*models.Account{account}, nil
	}
	return nil, fmt.Errorf("%w: unsupported transaction type %q", models.ErrValidation, txn.Type)
}
