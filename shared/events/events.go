package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eaglebank/banking/shared/models"
	"github.com/shopspring/decimal"
)

// Event types
const (
	TransferInitiated   = "TRANSFER_INITIATED"
	DepositInitiated    = "DEPOSIT_INITIATED"
	WithdrawalInitiated = "WITHDRAWAL_INITIATED"

	TransferCompleted   = "TRANSFER_COMPLETED"
	DepositCompleted    = "DEPOSIT_COMPLETED"
	WithdrawalCompleted = "WITHDRAWAL_COMPLETED"

	Rollback = "ROLLBACK"
)

// Topics
const (
	TransactionEventsTopic = "transaction-events"
	CompletionEventsTopic  = "transaction-completion-events"
	RollbackEventsTopic    = "rollback-events"
)

// Message is one delivery from a topic. Key is the transaction id.
type Message struct {
	ID      string
	Topic   string
	Key     string
	Payload []byte
}

// Handler processes one message. A non-nil error leaves the message
// unacknowledged so the channel redelivers it.
type Handler func(ctx context.Context, msg Message) error

// TransactionEvent is the JSON body of every event on the three topics.
// EventType is the discriminator.
type TransactionEvent struct {
	EventType       string                   `json:"eventType"`
	TransactionID   string                   `json:"transactionId"`
	TransactionType models.TransactionType   `json:"transactionType,omitempty"`
	FromAccountID   string                   `json:"fromAccountId,omitempty"`
	ToAccountID     string                   `json:"toAccountId,omitempty"`
	AccountID       string                   `json:"accountId,omitempty"`
	Amount          decimal.Decimal          `json:"amount"`
	Status          models.TransactionStatus `json:"status,omitempty"`
	Timestamp       time.Time                `json:"timestamp"`
}

func InitiatedEventType(t models.TransactionType) string { return string(t) + "_INITIATED" }

func CompletedEventType(t models.TransactionType) string { return string(t) + "_COMPLETED" }

func IsIntent(eventType string) bool {
	switch eventType {
	case TransferInitiated, DepositInitiated, WithdrawalInitiated:
		return true
	}
	return false
}

func IsCompletion(eventType string) bool {
	switch eventType {
	case TransferCompleted, DepositCompleted, WithdrawalCompleted:
		return true
	}
	return false
}

func newTransactionEvent(eventType string, txn *models.Transaction, status models.TransactionStatus) TransactionEvent {
	return TransactionEvent{
		EventType:       eventType,
		TransactionID:   txn.ID,
		TransactionType: txn.Type,
		FromAccountID:   txn.FromAccountID,
		ToAccountID:     txn.ToAccountID,
		AccountID:       txn.AccountID,
		Amount:          txn.Amount,
		Status:          status,
		Timestamp:       time.Now().UTC(),
	}
}

func NewIntentEvent(txn *models.Transaction) TransactionEvent {
	return newTransactionEvent(InitiatedEventType(txn.Type), txn, models.StatusPending)
}

func NewCompletedEvent(txn *models.Transaction) TransactionEvent {
	return newTransactionEvent(CompletedEventType(txn.Type), txn, models.StatusCompleted)
}

func NewRollbackEvent(txn *models.Transaction) TransactionEvent {
	return newTransactionEvent(Rollback, txn, "")
}

// Transaction rebuilds a PENDING record from an intent event.
func (e TransactionEvent) Transaction(now time.Time) *models.Transaction {
	return &models.Transaction{
		ID:            e.TransactionID,
		Type:          e.TransactionType,
		FromAccountID: e.FromAccountID,
		ToAccountID:   e.ToAccountID,
		AccountID:     e.AccountID,
		Amount:        e.Amount,
		Status:        models.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func DecodeTransactionEvent(msg Message) (TransactionEvent, error) {
	var event TransactionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return TransactionEvent{}, fmt.Errorf("failed to unmarshal event %s: %w", msg.ID, err)
	}
	return event, nil
}
