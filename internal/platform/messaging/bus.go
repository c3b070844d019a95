package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	contractsv1 "medrecords/contracts/gen/events/v1"
)

// EventBus is an in-process publish/subscribe bus of canonical envelopes.
// Publish hands the event to every subscriber in turn and returns their
// errors, so a publisher only acknowledges what every consumer accepted.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]subscription
	nextID      uint64
	logger      *slog.Logger
}

type subscription struct {
	id            uint64
	consumerGroup string
	handler       func(context.Context, contractsv1.Envelope) error
}

func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		subscribers: make(map[string][]subscription),
		logger:      logger,
	}
}

func (b *EventBus) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sub.handler(ctx, event); err != nil {
			b.logger.Error("consumer handler failed",
				"event", "bus_consume_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", sub.consumerGroup,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			errs = append(errs, fmt.Errorf("consumer %s: %w", sub.consumerGroup, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"subscribers", len(subs),
	)
	return nil
}

// Subscribe registers handler until ctx is cancelled.
func (b *EventBus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, contractsv1.Envelope) error,
) error {
	b.mu.Lock()
	b.nextID++
	sub := subscription{id: b.nextID, consumerGroup: consumerGroup, handler: handler}
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.removeSubscriber(topic, sub.id)
	}()
	return nil
}

func (b *EventBus) removeSubscriber(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]subscription, 0, len(items))
	for _, item := range items {
		if item.id != id {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[topic] = filtered
}
