package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	application "medrecords/contexts/clinical-records/record-access-service/application"
	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

// AuditTrailConsumer indexes published audit events into the audit log.
// It never writes back to participant records.
type AuditTrailConsumer struct {
	Subscriber    ports.EventSubscriber
	Recorder      ports.AuditEntryRecorder
	Clock         ports.Clock
	Topic         string
	ConsumerGroup string
	DedupTTL      time.Duration
	Logger        *slog.Logger
}

func (c AuditTrailConsumer) Start(ctx context.Context) error {
	return c.Subscriber.Subscribe(ctx, c.topic(), c.consumerGroup(), c.Handle)
}

func (c AuditTrailConsumer) Handle(ctx context.Context, event ports.AuditEnvelope) error {
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}

	if !entities.AuditEventKind(event.EventType).Valid() {
		application.ResolveLogger(c.Logger).Warn("audit trail ignored unknown event",
			"event", "records_audit_trail_unknown_event",
			"module", "clinical-records/record-access-service",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
		return nil
	}

	// A failed write returns the error so the publisher redelivers; the
	// reservation only sticks once the entry is stored.
	_, err := c.Recorder.RecordAuditEntry(ctx, entities.AuditEntry{
		EventID:    event.EventID,
		EventType:  event.EventType,
		RecordID:   event.PartitionKey,
		ActorID:    event.ActorID,
		Payload:    append([]byte(nil), event.Data...),
		OccurredAt: event.OccurredAt.UTC(),
		RecordedAt: now,
	}, hashPayload(event.Data), now.Add(c.dedupTTL()))
	if err != nil {
		application.ResolveLogger(c.Logger).Error("audit trail write failed",
			"event", "records_audit_trail_write_failed",
			"module", "clinical-records/record-access-service",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (c AuditTrailConsumer) topic() string {
	if c.Topic == "" {
		return "records.audit"
	}
	return c.Topic
}

func (c AuditTrailConsumer) consumerGroup() string {
	if c.ConsumerGroup == "" {
		return "record-access-audit-trail-cg"
	}
	return c.ConsumerGroup
}

func (c AuditTrailConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
