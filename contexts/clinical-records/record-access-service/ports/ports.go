package ports

import (
	"context"
	"time"

	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	contractsv1 "medrecords/contracts/gen/events/v1"
)

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID generation for reports and outbox rows.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// IdentityResolver maps an authenticated caller to its registered participant.
// Unknown or blank callers fail with ErrIdentityUnresolved.
type IdentityResolver interface {
	ResolveActor(ctx context.Context, actorID string) (entities.Participant, error)
}

// IdempotencyRecord stores request hash and previous response payload.
type IdempotencyRecord struct {
	Key             string
	Operation       string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

// IdempotencyStore looks up stored replays for mutating endpoints. Replays
// are written by the Repository together with the record change.
type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
}

// OutboxEvent is written in the same store transaction as the record change.
type OutboxEvent struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// SaveAuthorizationInput replaces a participant's authorization list.
type SaveAuthorizationInput struct {
	ParticipantID   string
	Authorized      []string
	ExpectedVersion int64
	UpdatedAt       time.Time
	Event           OutboxEvent
}

// AppendReportInput appends one report at position Sequence (1-based).
type AppendReportInput struct {
	PatientID       string
	Report          entities.Report
	Sequence        int
	ExpectedVersion int64
	UpdatedAt       time.Time
	Event           OutboxEvent
	Replay          *IdempotencyRecord
}

// MergeHealthDataInput carries the merged health data to persist.
type MergeHealthDataInput struct {
	PatientID       string
	HealthData      map[string]any
	ExpectedVersion int64
	UpdatedAt       time.Time
	Event           OutboxEvent
	Replay          *IdempotencyRecord
}

// Repository is the read/write boundary for participant and patient records.
// Every write commits the record change, its outbox event and the optional
// idempotency replay atomically. It fails with ErrStaleRecord when
// ExpectedVersion no longer matches and with ErrIdempotencyConflict when the
// replay key is already taken.
type Repository interface {
	GetParticipant(ctx context.Context, participantID string) (entities.Participant, error)
	GetPatient(ctx context.Context, patientID string) (entities.Participant, error)
	SaveAuthorization(ctx context.Context, input SaveAuthorizationInput) error
	AppendReport(ctx context.Context, input AppendReportInput) error
	MergeHealthData(ctx context.Context, input MergeHealthDataInput) error
}

// OutboxMessage represents a pending relay message.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository supports worker relay polling and acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// AuditEnvelope reuses the canonical cross-runtime envelope contract.
type AuditEnvelope = contractsv1.Envelope

// AuditEventPublisher delivers committed audit events to an external sink.
type AuditEventPublisher interface {
	PublishAuditEvent(ctx context.Context, event AuditEnvelope) error
}

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event AuditEnvelope) error
}

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, AuditEnvelope) error,
	) error
}

// AuditEntryRecorder stores each consumed audit event once. The dedup
// reservation and the entry commit together, so a failed write leaves the
// event open for redelivery. It reports true for an already recorded event.
type AuditEntryRecorder interface {
	RecordAuditEntry(ctx context.Context, entry entities.AuditEntry, payloadHash string, expiresAt time.Time) (bool, error)
}

// AuditLog lists consumed audit events for owner review.
type AuditLog interface {
	ListAuditEntries(ctx context.Context, recordID string, limit int) ([]entities.AuditEntry, error)
}

// Metrics observes transaction and relay outcomes.
type Metrics interface {
	ObserveTransaction(operation string, outcome string)
	ObserveRelay(eventType string, outcome string)
}
