package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher sends payload to topic. Messages with the same key are delivered
// in publish order.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// RedisPublisher appends events to Redis Streams, one stream per partition.
type RedisPublisher struct {
	client     *redis.Client
	partitions int
}

func NewRedisPublisher(client *redis.Client, partitions int) *RedisPublisher {
	if partitions < 1 {
		partitions = 1
	}
	return &RedisPublisher{client: client, partitions: partitions}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: StreamName(topic, Partition(key, p.partitions)),
		Values: map[string]any{
			"key":   key,
			"event": body,
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
