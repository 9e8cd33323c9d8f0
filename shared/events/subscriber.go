package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	topic         string
	streams       []string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	claimMinIdle  time.Duration
	lastClaim     time.Time
	logger        *zap.Logger
}

type SubscriberConfig struct {
	Group    string
	Consumer string
	Topic    string
	// Partitions owned by this consumer. Two consumers of one group must not
	// share a partition or per-key ordering is lost.
	Partitions []int
	Handler    Handler
	BatchSize  int64
	// BlockDuration bounds each XREADGROUP call. Negative disables blocking.
	BlockDuration time.Duration
	// ClaimMinIdle is how long a failed message stays pending before this
	// consumer claims it again.
	ClaimMinIdle time.Duration
	Logger       *zap.Logger
}

func NewSubscriber(client *redis.Client, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.ClaimMinIdle == 0 {
		config.ClaimMinIdle = 30 * time.Second
	}
	if len(config.Partitions) == 0 {
		config.Partitions = []int{0}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	streams := make([]string, len(config.Partitions))
	for i, p := range config.Partitions {
		streams[i] = StreamName(config.Topic, p)
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		topic:         config.Topic,
		streams:       streams,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		claimMinIdle:  config.ClaimMinIdle,
		lastClaim:     time.Now(),
		logger:        config.Logger.With(zap.String("topic", config.Topic), zap.String("group", config.Group)),
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.createGroups(ctx); err != nil {
		return err
	}

	s.logger.Info("subscriber started", zap.String("consumer", s.consumer), zap.Strings("streams", s.streams))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("subscriber stopping")
			return ctx.Err()
		default:
			if time.Since(s.lastClaim) >= s.claimMinIdle {
				s.reclaimPending(ctx)
				s.lastClaim = time.Now()
			}
			if err := s.readMessages(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("error reading messages", zap.Error(err))
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Subscriber) createGroups(ctx context.Context) error {
	for _, stream := range s.streams {
		err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create consumer group on %s: %w", stream, err)
		}
	}
	return nil
}

func (s *Subscriber) readMessages(ctx context.Context) error {
	ids := make([]string, len(s.streams))
	for i := range ids {
		ids[i] = ">"
	}

	args := &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  append(append([]string{}, s.streams...), ids...),
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}
	streams, err := s.client.XReadGroup(ctx, args).Result()
	if err == redis.Nil {
		return nil // No messages
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		s.handleBatch(ctx, stream.Stream, stream.Messages)
	}
	return nil
}

// reclaimPending takes over messages whose handler failed and which have been
// idle for at least claimMinIdle.
func (s *Subscriber) reclaimPending(ctx context.Context) {
	for _, stream := range s.streams {
		messages, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    s.group,
			Consumer: s.consumer,
			MinIdle:  s.claimMinIdle,
			Start:    "0-0",
			Count:    s.batchSize,
		}).Result()
		if err != nil {
			s.logger.Warn("failed to reclaim pending messages", zap.String("stream", stream), zap.Error(err))
			continue
		}
		if len(messages) > 0 {
			s.logger.Info("reclaimed pending messages", zap.String("stream", stream), zap.Int("count", len(messages)))
			s.handleBatch(ctx, stream, messages)
		}
	}
}

func (s *Subscriber) handleBatch(ctx context.Context, stream string, messages []redis.XMessage) {
	for _, message := range messages {
		if err := s.processMessage(ctx, message); err != nil {
			// Not acknowledged: stays pending until reclaimed.
			s.logger.Error("failed to process message", zap.String("message_id", message.ID), zap.Error(err))
			continue
		}
		if err := s.client.XAck(ctx, stream, s.group, message.ID).Err(); err != nil {
			s.logger.Error("failed to ack message", zap.String("message_id", message.ID), zap.Error(err))
		}
	}
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	payload, ok := message.Values["event"].(string)
	if !ok {
		// Redelivery cannot fix a malformed entry; ack it and move on.
		s.logger.Error("dropping malformed message", zap.String("message_id", message.ID))
		return nil
	}
	key, _ := message.Values["key"].(string)

	return s.handler(ctx, Message{
		ID:      message.ID,
		Topic:   s.topic,
		Key:     key,
		Payload: []byte(payload),
	})
}
