package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversToSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	var got []Message
	bus.Subscribe(TransactionEventsTopic, func(ctx context.Context, msg Message) error {
		got = append(got, msg)
		return nil
	})

	txn := transferFixture()
	require.NoError(t, bus.Publish(context.Background(), TransactionEventsTopic, txn.ID, NewIntentEvent(txn)))
	require.NoError(t, bus.Publish(context.Background(), RollbackEventsTopic, txn.ID, NewRollbackEvent(txn)))

	require.Len(t, got, 1)
	assert.Equal(t, txn.ID, got[0].Key)
	assert.Equal(t, TransactionEventsTopic, got[0].Topic)

	intents, err := bus.Events(TransactionEventsTopic)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, TransferInitiated, intents[0].EventType)

	assert.Len(t, bus.Published(RollbackEventsTopic), 1)
	assert.Empty(t, bus.Published(CompletionEventsTopic))
}

func TestMemoryBusHandlerMayPublish(t *testing.T) {
	bus := NewMemoryBus()
	bus.Subscribe(TransactionEventsTopic, func(ctx context.Context, msg Message) error {
		event, err := DecodeTransactionEvent(msg)
		if err != nil {
			return err
		}
		return bus.Publish(ctx, CompletionEventsTopic, msg.Key, NewCompletedEvent(event.Transaction(event.Timestamp)))
	})

	txn := transferFixture()
	require.NoError(t, bus.Publish(context.Background(), TransactionEventsTopic, txn.ID, NewIntentEvent(txn)))

	completions, err := bus.Events(CompletionEventsTopic)
	require.NoError(t, err)
	require.Len(t, completions, 1)
	assert.Equal(t, TransferCompleted, completions[0].EventType)
}

func TestMemoryBusPublishError(t *testing.T) {
	bus := NewMemoryBus()
	bus.PublishErr = errors.New("broker down")

	err := bus.Publish(context.Background(), TransactionEventsTopic, "k", map[string]string{})
	assert.ErrorIs(t, err, bus.PublishErr)
	assert.Empty(t, bus.Published(TransactionEventsTopic))
}
