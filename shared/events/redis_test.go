package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestSubscriber(client *redis.Client, partitions []int, handler Handler) *Subscriber {
	return NewSubscriber(client, SubscriberConfig{
		Group:         "test-group",
		Consumer:      "consumer-1",
		Topic:         TransactionEventsTopic,
		Partitions:    partitions,
		Handler:       handler,
		BlockDuration: -1,
		ClaimMinIdle:  time.Millisecond,
	})
}

func TestRedisPublisherPartitionsByKey(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	pub := NewRedisPublisher(client, 4)

	txn := transferFixture()
	require.NoError(t, pub.Publish(ctx, TransactionEventsTopic, txn.ID, NewIntentEvent(txn)))
	require.NoError(t, pub.Publish(ctx, TransactionEventsTopic, txn.ID, NewIntentEvent(txn)))

	stream := StreamName(TransactionEventsTopic, Partition(txn.ID, 4))
	entries, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, txn.ID, entries[0].Values["key"])
}

func TestSubscriberDeliversAndAcks(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	pub := NewRedisPublisher(client, 1)

	var got []TransactionEvent
	sub := newTestSubscriber(client, []int{0}, func(ctx context.Context, msg Message) error {
		event, err := DecodeTransactionEvent(msg)
		if err != nil {
			return err
		}
		got = append(got, event)
		return nil
	})
	require.NoError(t, sub.createGroups(ctx))

	txn := transferFixture()
	require.NoError(t, pub.Publish(ctx, TransactionEventsTopic, txn.ID, NewIntentEvent(txn)))
	require.NoError(t, sub.readMessages(ctx))

	require.Len(t, got, 1)
	assert.Equal(t, txn.ID, got[0].TransactionID)

	pending, err := client.XPending(ctx, StreamName(TransactionEventsTopic, 0), "test-group").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestSubscriberLeavesFailedMessagePending(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	pub := NewRedisPublisher(client, 1)

	attempts := 0
	sub := newTestSubscriber(client, []int{0}, func(ctx context.Context, msg Message) error {
		attempts++
		if attempts == 1 {
			return errors.New("database unavailable")
		}
		return nil
	})
	require.NoError(t, sub.createGroups(ctx))

	require.NoError(t, pub.Publish(ctx, TransactionEventsTopic, "txn-1", NewIntentEvent(transferFixture())))
	require.NoError(t, sub.readMessages(ctx))

	stream := StreamName(TransactionEventsTopic, 0)
	pending, err := client.XPending(ctx, stream, "test-group").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	time.Sleep(5 * time.Millisecond)
	sub.reclaimPending(ctx)

	assert.Equal(t, 2, attempts)
	pending, err = client.XPending(ctx, stream, "test-group").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestSubscriberAcksMalformedEntries(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	called := false
	sub := newTestSubscriber(client, []int{0}, func(ctx context.Context, msg Message) error {
		called = true
		return nil
	})
	require.NoError(t, sub.createGroups(ctx))

	stream := StreamName(TransactionEventsTopic, 0)
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: map[string]any{"junk": "1"}}).Err())
	require.NoError(t, sub.readMessages(ctx))

	assert.False(t, called)
	pending, err := client.XPending(ctx, stream, "test-group").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestSubscriberOnlyReadsOwnedPartitions(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	var keys []string
	sub := newTestSubscriber(client, []int{1}, func(ctx context.Context, msg Message) error {
		keys = append(keys, msg.Key)
		return nil
	})
	require.NoError(t, sub.createGroups(ctx))

	for _, p := range []int{0, 1} {
		err := client.XAdd(ctx, &redis.XAddArgs{
			Stream: StreamName(TransactionEventsTopic, p),
			Values: map[string]any{"key": StreamName("k", p), "event": "{}"},
		}).Err()
		require.NoError(t, err)
	}
	require.NoError(t, sub.readMessages(ctx))

	assert.Equal(t, []string{"k:1"}, keys)
}
