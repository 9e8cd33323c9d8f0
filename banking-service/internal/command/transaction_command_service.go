package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/banking/banking-service/internal/repository"
	"github.com/eaglebank/banking/shared/cqrs"
	"github.com/eaglebank/banking/shared/events"
	"github.com/eaglebank/banking/shared/ledger"
	"github.com/eaglebank/banking/shared/models"
	"github.com/eaglebank/banking/shared/utils"
)

// InitiationResult is all a caller learns synchronously; settlement happens
// on the account service.
type InitiationResult struct {
	TransactionID string                   `json:"transactionId"`
	Status        models.TransactionStatus `json:"status"`
}

// TransactionCommandService validates client requests, records them as
// PENDING and hands them to the account service through an intent event. It
// never touches balances.
type TransactionCommandService struct {
	store        ledger.Store
	transactions *repository.TransactionReadRepository
	publisher    events.Publisher
	logger       *zap.Logger
	now          func() time.Time
}

func NewTransactionCommandService(
	store ledger.Store,
	transactions *repository.TransactionReadRepository,
	publisher events.Publisher,
	logger *zap.Logger,
) *TransactionCommandService {
	return &TransactionCommandService{
		store:        store,
		transactions: transactions,
		publisher:    publisher,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *TransactionCommandService) InitiateTransfer(ctx context.Context, cmd cqrs.InitiateTransferCommand) (*InitiationResult, error) {
	return s.initiate(ctx, &models.Transaction{
		ID:            utils.NormalizeID(cmd.TransactionID),
		Type:          models.TransactionTypeTransfer,
		FromAccountID: cmd.FromAccountID,
		ToAccountID:   cmd.ToAccountID,
		Amount:        cmd.Amount,
	})
}

func (s *TransactionCommandService) InitiateDeposit(ctx context.Context, cmd cqrs.InitiateDepositCommand) (*InitiationResult, error) {
	return s.initiate(ctx, &models.Transaction{
		ID:        utils.NormalizeID(cmd.TransactionID),
		Type:      models.TransactionTypeDeposit,
		AccountID: cmd.AccountID,
		Amount:    cmd.Amount,
	})
}

func (s *TransactionCommandService) InitiateWithdrawal(ctx context.Context, cmd cqrs.InitiateWithdrawalCommand) (*InitiationResult, error) {
	return s.initiate(ctx, &models.Transaction{
		ID:        utils.NormalizeID(cmd.TransactionID),
		Type:      models.TransactionTypeWithdrawal,
		AccountID: cmd.AccountID,
		Amount:    cmd.Amount,
	})
}

// RequestRollback asks the account service to compensate a transaction. The
// record must exist; whether the rollback applies is decided by the account
// service from the record's status.
func (s *TransactionCommandService) RequestRollback(ctx context.Context, cmd cqrs.RequestRollbackCommand) (*InitiationResult, error) {
	id := utils.NormalizeID(cmd.TransactionID)
	if id == "" {
		return nil, fmt.Errorf("%w: transaction id is required", models.ErrValidation)
	}

	txn, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, initiationError(err)
	}

	if err := s.publisher.Publish(ctx, events.RollbackEventsTopic, txn.ID, events.NewRollbackEvent(txn)); err != nil {
		s.logger.Error("failed to publish rollback request", zap.String("transaction_id", txn.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrInitiationFailed, err)
	}

	s.logger.Info("rollback requested", zap.String("transaction_id", txn.ID), zap.String("status", string(txn.Status)))
	return &InitiationResult{TransactionID: txn.ID, Status: txn.Status}, nil
}

// HandleCompletionEvent refreshes the transaction view when the account
// service reports a settled transaction.
func (s *TransactionCommandService) HandleCompletionEvent(ctx context.Context, msg events.Message) error {
	event, err := events.DecodeTransactionEvent(msg)
	if err != nil {
		s.logger.Error("dropping undecodable completion event", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if !events.IsCompletion(event.EventType) {
		s.logger.Debug("ignoring event", zap.String("event_type", event.EventType))
		return nil
	}

	view, err := s.transactions.Refresh(ctx, event.TransactionID)
	if errors.Is(err, models.ErrTransactionNotFound) {
		s.logger.Warn("completion for unknown transaction", zap.String("transaction_id", event.TransactionID))
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("transaction settled",
		zap.String("transaction_id", view.TransactionID),
		zap.String("event_type", event.EventType),
		zap.String("status", string(view.Status)),
	)
	return nil
}

func (s *TransactionCommandService) initiate(ctx context.Context, txn *models.Transaction) (*InitiationResult, error) {
	callerSupplied := txn.ID != ""
	if !callerSupplied {
		txn.ID = utils.NewTransactionID()
	}
	if err := txn.Validate(); err != nil {
		return nil, err
	}

	if callerSupplied {
		result, err := s.replay(ctx, txn)
		if err != nil || result != nil {
			return result, err
		}
	}

	if err := s.checkAccounts(ctx, txn); err != nil {
		return nil, err
	}

	now := s.now()
	txn.Status = models.StatusPending
	txn.CreatedAt = now
	txn.UpdatedAt = now

	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		if errors.Is(err, models.ErrDuplicateTransaction) && callerSupplied {
			// Lost a race with a concurrent request carrying the same id.
			result, replayErr := s.replay(ctx, txn)
			if replayErr != nil || result != nil {
				return result, replayErr
			}
		}
		return nil, initiationError(err)
	}

	if err := s.publishIntent(ctx, txn); err != nil {
		return nil, err
	}

	s.transactions.CacheTransactionView(ctx, models.NewTransactionView(txn))
	s.logger.Info("transaction initiated",
		zap.String("transaction_id", txn.ID),
		zap.String("transaction_type", string(txn.Type)),
		zap.Strings("account_ids", txn.AccountIDs()),
		zap.String("amount", txn.Amount.StringFixed(2)),
	)
	return &InitiationResult{TransactionID: txn.ID, Status: txn.Status}, nil
}

// replay handles a caller-supplied id that may already be on record. A nil
// result with a nil error means the id is new.
func (s *TransactionCommandService) replay(ctx context.Context, requested *models.Transaction) (*InitiationResult, error) {
	existing, err := s.store.GetTransaction(ctx, requested.ID)
	if errors.Is(err, models.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, initiationError(err)
	}

	if !existing.SameRequest(requested) {
		return nil, fmt.Errorf("%w: %s", models.ErrIdempotencyConflict, requested.ID)
	}

	if existing.Status == models.StatusPending {
		if err := s.publishIntent(ctx, existing); err != nil {
			return nil, err
		}
	}

	s.logger.Info("replayed transaction request",
		zap.String("transaction_id", existing.ID),
		zap.String("status", string(existing.Status)),
	)
	return &InitiationResult{TransactionID: existing.ID, Status: existing.Status}, nil
}

// checkAccounts resolves participants in order and stops at the first
// missing one. Deposits create their account on first use, before the intent
// is published so the processor can lock it; a failed publish leaves the
// empty account behind for the retry.
func (s *TransactionCommandService) checkAccounts(ctx context.Context, txn *models.Transaction) error {
	if txn.Type == models.TransactionTypeDeposit {
		now := s.now()
		_, err := s.store.CreateAccountIfAbsent(ctx, &models.Account{
			ID:            txn.AccountID,
			AccountNumber: utils.AccountNumberFor(txn.AccountID),
			CustomerName:  utils.CustomerNameFor(txn.AccountID),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return initiationError(err)
		}
		return nil
	}

	for _, id := range txn.AccountIDs() {
		if _, err := s.store.GetAccount(ctx, id); err != nil {
			return initiationError(err)
		}
	}
	return nil
}

func (s *TransactionCommandService) publishIntent(ctx context.Context, txn *models.Transaction) error {
	err := s.publisher.Publish(ctx, events.TransactionEventsTopic, txn.ID, events.NewIntentEvent(txn))
	if err != nil {
		// The PENDING record stays; resubmitting the same id publishes again.
		s.logger.Error("failed to publish transaction intent", zap.String("transaction_id", txn.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrInitiationFailed, err)
	}
	return nil
}

// initiationError passes domain errors through and marks everything else as
// an infrastructure failure.
func initiationError(err error) error {
	switch {
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrTransactionNotFound),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrIdempotencyConflict):
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrInitiationFailed, err)
}
