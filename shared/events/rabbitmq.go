package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var ErrPublishNacked = errors.New("message was nacked by broker")

// DialRabbitMQ retries because the broker is often still starting when the
// services come up.
func DialRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < 10; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("failed to connect to RabbitMQ, retrying", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
}

// RabbitPublisher publishes to one durable queue per topic. A single queue
// with a single consumer keeps per-key order.
type RabbitPublisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	declared map[string]bool
}

func NewRabbitPublisher(conn *amqp.Connection) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	return &RabbitPublisher{channel: ch, declared: make(map[string]bool)}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[topic] {
		if err := declareQueue(p.channel, topic); err != nil {
			return err
		}
		p.declared[topic] = true
	}

	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(ctx,
		"",    // exchange
		topic, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			MessageId:     uuid.NewString(),
			CorrelationId: key,
			ContentType:   "application/json",
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now().UTC(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm event: %w", err)
	}
	if !acked {
		return ErrPublishNacked
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	return p.channel.Close()
}

type RabbitSubscriberConfig struct {
	Topic    string
	Consumer string
	Handler  Handler
	Logger   *zap.Logger
}

type RabbitSubscriber struct {
	conn     *amqp.Connection
	topic    string
	consumer string
	handler  Handler
	// requeueDelay spaces out redeliveries of a failing message.
	requeueDelay time.Duration
	logger       *zap.Logger
}

func NewRabbitSubscriber(conn *amqp.Connection, config RabbitSubscriberConfig) *RabbitSubscriber {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &RabbitSubscriber{
		conn:         conn,
		topic:        config.Topic,
		consumer:     config.Consumer,
		handler:      config.Handler,
		requeueDelay: time.Second,
		logger:       config.Logger.With(zap.String("topic", config.Topic)),
	}
}

func (s *RabbitSubscriber) Start(ctx context.Context) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	defer ch.Close()

	if err := declareQueue(ch, s.topic); err != nil {
		return err
	}
	// One unacknowledged message at a time keeps delivery in queue order.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(s.topic, s.consumer, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	s.logger.Info("subscriber started", zap.String("consumer", s.consumer))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("subscriber stopping")
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", s.topic)
			}
			s.deliver(ctx, d)
		}
	}
}

func (s *RabbitSubscriber) deliver(ctx context.Context, d amqp.Delivery) {
	msg := Message{ID: d.MessageId, Topic: s.topic, Key: d.CorrelationId, Payload: d.Body}
	if err := s.handler(ctx, msg); err != nil {
		s.logger.Error("failed to process message", zap.String("message_id", d.MessageId), zap.Error(err))
		time.Sleep(s.requeueDelay)
		if err := d.Nack(false, true); err != nil {
			s.logger.Error("failed to nack message", zap.String("message_id", d.MessageId), zap.Error(err))
		}
		return
	}
	if err := d.Ack(false); err != nil {
		s.logger.Error("failed to ack message", zap.String("message_id", d.MessageId), zap.Error(err))
	}
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}
