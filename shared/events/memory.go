package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// MemoryBus is an in-process channel. It records every published message and
// hands it synchronously to the handlers subscribed to its topic.
type MemoryBus struct {
	mu        sync.Mutex
	seq       int
	published []Message
	handlers  map[string][]Handler
	// PublishErr, when set, makes Publish reject every send.
	PublishErr error
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]Handler)}
}

func (b *MemoryBus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

func (b *MemoryBus) Publish(ctx context.Context, topic, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	b.mu.Lock()
	if b.PublishErr != nil {
		b.mu.Unlock()
		return fmt.Errorf("failed to publish event: %w", b.PublishErr)
	}
	b.seq++
	msg := Message{ID: strconv.Itoa(b.seq), Topic: topic, Key: key, Payload: body}
	b.published = append(b.published, msg)
	handlers := append([]Handler(nil), b.handlers[topic]...)
	b.mu.Unlock()

	for _, handler := range handlers {
		// Handler errors would mean redelivery on a real channel; the bus
		// only hands the message over once.
		_ = handler(ctx, msg)
	}
	return nil
}

// Published returns the messages sent to topic, oldest first.
func (b *MemoryBus) Published(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, msg := range b.published {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// Events decodes every message published to topic.
func (b *MemoryBus) Events(topic string) ([]TransactionEvent, error) {
	var out []TransactionEvent
	for _, msg := range b.Published(topic) {
		event, err := DecodeTransactionEvent(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}
