package events

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- mock implementations ----

type ackCall struct {
	op      string
	tag     uint64
	requeue bool
}

type mockAcknowledger struct {
	calls []ackCall
	ackFn func() error
}

func (m *mockAcknowledger) Ack(tag uint64, multiple bool) error {
	m.calls = append(m.calls, ackCall{op: "ack", tag: tag})
	if m.ackFn != nil {
		return m.ackFn()
	}
	return nil
}

func (m *mockAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	m.calls = append(m.calls, ackCall{op: "nack", tag: tag, requeue: requeue})
	return nil
}

func (m *mockAcknowledger) Reject(tag uint64, requeue bool) error {
	m.calls = append(m.calls, ackCall{op: "reject", tag: tag, requeue: requeue})
	return nil
}

func newTestRabbitSubscriber(handler Handler) *RabbitSubscriber {
	s := NewRabbitSubscriber(nil, RabbitSubscriberConfig{
		Topic:    TransactionEventsTopic,
		Consumer: "account-service-1",
		Handler:  handler,
		Logger:   zap.NewNop(),
	})
	s.requeueDelay = 0
	return s
}

func TestRabbitSubscriberDeliver(t *testing.T) {
	tests := []struct {
		name       string
		handlerErr error
		want       ackCall
	}{
		{name: "handled message is acked", want: ackCall{op: "ack", tag: 7}},
		{name: "failed message is requeued", handlerErr: errors.New("database unavailable"), want: ackCall{op: "nack", tag: 7, requeue: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Message
			s := newTestRabbitSubscriber(func(_ context.Context, msg Message) error {
				got = msg
				return tt.handlerErr
			})
			ack := &mockAcknowledger{}

			s.deliver(context.Background(), amqp.Delivery{
				Acknowledger:  ack,
				DeliveryTag:   7,
				MessageId:     "m-1",
				CorrelationId: "t1",
				Body:          []byte(`{"eventType":"DEPOSIT_INITIATED"}`),
			})

			require.Len(t, ack.calls, 1)
			assert.Equal(t, tt.want, ack.calls[0])
			assert.Equal(t, Message{ID: "m-1", Topic: TransactionEventsTopic, Key: "t1", Payload: []byte(`{"eventType":"DEPOSIT_INITIATED"}`)}, got)
		})
	}
}

func TestRabbitSubscriberAckFailureIsLogged(t *testing.T) {
	s := newTestRabbitSubscriber(func(context.Context, Message) error { return nil })
	ack := &mockAcknowledger{ackFn: func() error { return amqp.ErrClosed }}

	assert.NotPanics(t, func() {
		s.deliver(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1})
	})
	assert.Equal(t, []ackCall{{op: "ack", tag: 1}}, ack.calls)
}
