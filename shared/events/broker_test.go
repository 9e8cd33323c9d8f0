package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewBrokerRedis(t *testing.T) {
	client := setupRedis(t)
	broker, err := NewBroker(BrokerConfig{Kind: "redis", Partitions: 2, OwnedPartitions: []int{1}, Consumer: "c1"}, client, zap.NewNop())
	require.NoError(t, err)
	defer broker.Close()

	assert.IsType(t, &RedisPublisher{}, broker.Publisher)

	runner := broker.Subscribe(TransactionEventsTopic, "account-service", func(context.Context, Message) error { return nil })
	sub, ok := runner.(*Subscriber)
	require.True(t, ok)
	assert.Equal(t, []string{StreamName(TransactionEventsTopic, 1)}, sub.streams)
	assert.Equal(t, "account-service", sub.group)
}

func TestNewBrokerUnknownKind(t *testing.T) {
	_, err := NewBroker(BrokerConfig{Kind: "kafka"}, nil, zap.NewNop())
	assert.Error(t, err)
}
