package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaglebank/banking/shared/events"
	"github.com/eaglebank/banking/shared/models"
)

// wire subscribes the account service consumers to the in-process bus, the
// way cmd/main.go subscribes them to the broker.
func (f *fixture) wire() {
	f.bus.Subscribe(events.TransactionEventsTopic, f.processor.HandleTransactionEvent)
	f.bus.Subscribe(events.RollbackEventsTopic, f.rollback.HandleRollbackEvent)
}

func (f *fixture) initiate(t *testing.T, txn *models.Transaction) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.CreateTransaction(ctx, txn))
	require.NoError(t, f.bus.Publish(ctx, events.TransactionEventsTopic, txn.ID, events.NewIntentEvent(txn)))
}

func TestPipelineTransferThenRollback(t *testing.T) {
	f := newFixture(t, map[string]string{"a1": "1000.00", "a2": "500.00"})
	f.wire()
	ctx := context.Background()

	f.initiate(t, transfer("t1", "a1", "a2", "200.00"))
	assert.Equal(t, models.StatusCompleted, f.status(t, "t1"))
	assertBalance(t, f, "a1", "800.00")
	assertBalance(t, f, "a2", "700.00")

	txn, err := f.store.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	require.NoError(t, f.bus.Publish(ctx, events.RollbackEventsTopic, txn.ID, events.NewRollbackEvent(txn)))

	assert.Equal(t, models.StatusRolledBack, f.status(t, "t1"))
	assertBalance(t, f, "a1", "1000.00")
	assertBalance(t, f, "a2", "500.00")

	// A late duplicate of the original intent changes nothing.
	require.NoError(t, f.bus.Publish(ctx, events.TransactionEventsTopic, txn.ID, events.NewIntentEvent(txn)))
	assert.Equal(t, models.StatusRolledBack, f.status(t, "t1"))
	assertBalance(t, f, "a1", "1000.00")
}

func TestPipelineInsufficientFundsRoutesToRollback(t *testing.T) {
	f := newFixture(t, map[string]string{"a1": "1000.00", "a2": "500.00"})
	f.wire()

	f.initiate(t, transfer("t2", "a1", "a2", "2000.00"))

	// The rollback handler sees a PENDING record and leaves it alone.
	assert.Equal(t, models.StatusPending, f.status(t, "t2"))
	assertBalance(t, f, "a1", "1000.00")
	assertBalance(t, f, "a2", "500.00")
	assert.Len(t, f.bus.Published(events.RollbackEventsTopic), 1)
	assert.Empty(t, f.bus.Published(events.CompletionEventsTopic))
}
