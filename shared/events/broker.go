package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Runner is a long-lived consumer loop.
type Runner interface {
	Start(ctx context.Context) error
}

type BrokerConfig struct {
	// Kind is "redis" or "rabbitmq".
	Kind        string
	RabbitMQURL string
	Partitions  int
	// OwnedPartitions lists the Redis partitions this process consumes.
	OwnedPartitions []int
	Consumer        string
}

// Broker hands out the publisher and consumers for the configured transport.
type Broker struct {
	Publisher Publisher

	cfg    BrokerConfig
	redis  *redis.Client
	rabbit *amqp.Connection
	logger *zap.Logger
}

func NewBroker(cfg BrokerConfig, redisClient *redis.Client, logger *zap.Logger) (*Broker, error) {
	b := &Broker{cfg: cfg, redis: redisClient, logger: logger}

	switch cfg.Kind {
	case "redis":
		b.Publisher = NewRedisPublisher(redisClient, cfg.Partitions)
	case "rabbitmq":
		conn, err := DialRabbitMQ(cfg.RabbitMQURL, logger)
		if err != nil {
			return nil, err
		}
		publisher, err := NewRabbitPublisher(conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		b.rabbit = conn
		b.Publisher = publisher
	default:
		return nil, fmt.Errorf("unknown event broker %q", cfg.Kind)
	}

	logger.Info("event broker ready", zap.String("broker", cfg.Kind))
	return b, nil
}

// Subscribe builds a consumer of topic for the named consumer group.
func (b *Broker) Subscribe(topic, group string, handler Handler) Runner {
	logger := b.logger.Named(group)
	if b.rabbit != nil {
		return NewRabbitSubscriber(b.rabbit, RabbitSubscriberConfig{
			Topic:    topic,
			Consumer: b.cfg.Consumer,
			Handler:  handler,
			Logger:   logger,
		})
	}
	return NewSubscriber(b.redis, SubscriberConfig{
		Group:      group,
		Consumer:   b.cfg.Consumer,
		Topic:      topic,
		Partitions: b.cfg.OwnedPartitions,
		Handler:    handler,
		Logger:     logger,
	})
}

func (b *Broker) Close() error {
	if b.rabbit == nil {
		return nil
	}
	if p, ok := b.Publisher.(*RabbitPublisher); ok {
		p.Close()
	}
	return b.rabbit.Close()
}
