package commands

import (
	"encoding/json"
	"fmt"

	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/ports"
	contractsv1 "medrecords/contracts/gen/events/v1"
)

const (
	SourceService       = "record-access-service"
	auditSchemaVersion  = 1
	auditPartitionKeyAt = "record_id"
)

// buildOutboxEvent encodes an audit event as a canonical envelope ready to be
// stored next to the record change.
func buildOutboxEvent(event entities.AuditEvent) (ports.OutboxEvent, error) {
	kind := event.Kind()
	if !kind.Valid() {
		return ports.OutboxEvent{}, fmt.Errorf("%w: unknown audit event kind %q", domainerrors.ErrEmit, kind)
	}
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return ports.OutboxEvent{}, fmt.Errorf("%w: encode %s payload: %w", domainerrors.ErrEmit, kind, err)
	}
	envelope := contractsv1.Envelope{
		EventID:          event.EventID,
		EventType:        string(kind),
		OccurredAt:       event.OccurredAt.UTC(),
		SourceService:    SourceService,
		TraceID:          event.TraceID,
		SchemaVersion:    auditSchemaVersion,
		PartitionKeyPath: auditPartitionKeyAt,
		PartitionKey:     event.RecordID,
		ActorID:          event.ActorID,
		Data:             data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return ports.OutboxEvent{}, fmt.Errorf("%w: encode envelope: %w", domainerrors.ErrEmit, err)
	}
	return ports.OutboxEvent{
		OutboxID:     event.EventID,
		EventType:    string(kind),
		PartitionKey: event.RecordID,
		Payload:      payload,
		CreatedAt:    event.OccurredAt.UTC(),
	}, nil
}
