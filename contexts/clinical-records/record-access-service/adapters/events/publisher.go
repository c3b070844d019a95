package events

import (
	"context"
	"errors"
	"log/slog"

	"medrecords/contexts/clinical-records/record-access-service/ports"
)

const DefaultAuditTopic = "records.audit"

// BusPublisher forwards audit events to a topic on the platform event bus.
type BusPublisher struct {
	bus    ports.EventPublisher
	topic  string
	logger *slog.Logger
}

func NewBusPublisher(bus ports.EventPublisher, topic string, logger *slog.Logger) *BusPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if topic == "" {
		topic = DefaultAuditTopic
	}
	return &BusPublisher{bus: bus, topic: topic, logger: logger}
}

func (p *BusPublisher) PublishAuditEvent(ctx context.Context, event ports.AuditEnvelope) error {
	if err := p.bus.Publish(ctx, p.topic, event); err != nil {
		return err
	}
	p.logger.Debug("audit event published",
		"event", "records_audit_event_published",
		"module", "clinical-records/record-access-service",
		"layer", "adapter",
		"topic", p.topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
	)
	return nil
}

// Fanout publishes every event to each sink in order and stops on the first
// failure, leaving the outbox row pending for the next relay pass.
type Fanout []ports.AuditEventPublisher

func (f Fanout) PublishAuditEvent(ctx context.Context, event ports.AuditEnvelope) error {
	if len(f) == 0 {
		return errors.New("no audit event sinks configured")
	}
	for _, sink := range f {
		if err := sink.PublishAuditEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
