package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"medrecords/contexts/clinical-records/record-access-service/adapters/memory"
	"medrecords/contexts/clinical-records/record-access-service/application/commands"
	"medrecords/contexts/clinical-records/record-access-service/application/workers"
	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []ports.AuditEnvelope
	err    error
}

func (p *capturePublisher) PublishAuditEvent(_ context.Context, event ports.AuditEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type relayMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *relayMetrics) ObserveTransaction(string, string) {}

func (m *relayMetrics) ObserveRelay(eventType string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[eventType+":"+outcome]++
}

func storeWithGrants(t *testing.T, grants ...string) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	store.Onboard(entities.Participant{ParticipantID: "p1", Clinical: &entities.ClinicalProfile{}})
	uc := commands.AuthorizeAccessUseCase{Identity: store, Repository: store, Clock: store, IDGenerator: store}
	for _, user := range grants {
		if _, err := uc.Execute(context.Background(), commands.AuthorizeAccessCommand{ActorID: "p1", UserID: user}); err != nil {
			t.Fatalf("grant %s: %v", user, err)
		}
	}
	return store
}

func TestOutboxRelayPublishesAndMarks(t *testing.T) {
	store := storeWithGrants(t, "u1", "u2")
	publisher := &capturePublisher{}
	metrics := &relayMetrics{}
	relay := workers.OutboxRelay{Outbox: store, Publisher: publisher, Clock: store, Metrics: metrics}

	published, err := relay.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	if published != 2 || len(publisher.events) != 2 {
		t.Fatalf("expected two published events, got %d / %d", published, len(publisher.events))
	}
	for _, event := range publisher.events {
		if event.EventType != string(entities.AuditEventAccessGranted) || event.PartitionKey != "p1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	}
	if metrics.outcomes[string(entities.AuditEventAccessGranted)+":published"] != 2 {
		t.Fatalf("unexpected relay metrics: %v", metrics.outcomes)
	}

	again, err := relay.RunOnce(context.Background())
	if err != nil || again != 0 {
		t.Fatalf("expected drained outbox, got %d err=%v", again, err)
	}
}

func TestOutboxRelayLeavesRowsPendingOnPublishFailure(t *testing.T) {
	store := storeWithGrants(t, "u1")
	relay := workers.OutboxRelay{Outbox: store, Publisher: &capturePublisher{err: errors.New("sink down")}, Clock: store}

	_, err := relay.RunOnce(context.Background())
	if !errors.Is(err, domainerrors.ErrEmit) {
		t.Fatalf("expected ErrEmit, got %v", err)
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 1 {
		t.Fatalf("failed publish must keep the row pending, got %d", len(pending))
	}

	recovered := &capturePublisher{}
	relay.Publisher = recovered
	if n, err := relay.RunOnce(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected retry to publish, got %d err=%v", n, err)
	}
}

type directSubscriber struct {
	handler func(context.Context, ports.AuditEnvelope) error
	topic   string
}

func (s *directSubscriber) Subscribe(_ context.Context, topic string, _ string, handler func(context.Context, ports.AuditEnvelope) error) error {
	s.topic = topic
	s.handler = handler
	return nil
}

func TestAuditTrailConsumerDedupsDeliveries(t *testing.T) {
	store := memory.NewStore()
	subscriber := &directSubscriber{}
	consumer := workers.AuditTrailConsumer{
		Subscriber: subscriber,
		Recorder:   store,
		Clock:      store,
	}
	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if subscriber.topic != "records.audit" {
		t.Fatalf("unexpected default topic %q", subscriber.topic)
	}

	data, _ := json.Marshal(entities.ReportAdded{UserID: "p1", Title: "Visit", Text: "ok"})
	event := ports.AuditEnvelope{
		EventID:      "evt-1",
		EventType:    string(entities.AuditEventReportAdded),
		OccurredAt:   time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		PartitionKey: "p1",
		ActorID:      "u1",
		Data:         data,
	}
	for i := 0; i < 2; i++ {
		if err := subscriber.handler(ctx, event); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	entries, err := store.ListAuditEntries(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].ActorID != "u1" || entries[0].EventType != event.EventType {
		t.Fatalf("expected a single indexed entry, got %+v", entries)
	}

	tampered := event
	tampered.Data = []byte(`{"user_id":"p1","title":"Changed"}`)
	if err := subscriber.handler(ctx, tampered); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict for reused event id, got %v", err)
	}
}

func TestAuditTrailConsumerIgnoresUnknownEvents(t *testing.T) {
	store := memory.NewStore()
	consumer := workers.AuditTrailConsumer{Recorder: store}

	err := consumer.Handle(context.Background(), ports.AuditEnvelope{EventID: "x", EventType: "records.report_removed", PartitionKey: "p1"})
	if err != nil {
		t.Fatalf("unknown events must be ignored, got %v", err)
	}
	entries, _ := store.ListAuditEntries(context.Background(), "p1", 10)
	if len(entries) != 0 {
		t.Fatalf("unknown event was indexed: %+v", entries)
	}
}

type flakyRecorder struct {
	next     ports.AuditEntryRecorder
	failures int
}

func (r *flakyRecorder) RecordAuditEntry(ctx context.Context, entry entities.AuditEntry, payloadHash string, expiresAt time.Time) (bool, error) {
	if r.failures > 0 {
		r.failures--
		return false, errors.New("audit log down")
	}
	return r.next.RecordAuditEntry(ctx, entry, payloadHash, expiresAt)
}

func TestAuditTrailConsumerRecordsRedeliveryAfterFailedWrite(t *testing.T) {
	store := memory.NewStore()
	consumer := workers.AuditTrailConsumer{Recorder: &flakyRecorder{next: store, failures: 1}, Clock: store}
	ctx := context.Background()

	data, _ := json.Marshal(entities.AccessGranted{UserID: "u1"})
	event := ports.AuditEnvelope{
		EventID:      "evt-1",
		EventType:    string(entities.AuditEventAccessGranted),
		OccurredAt:   time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		PartitionKey: "p1",
		ActorID:      "p1",
		Data:         data,
	}
	if err := consumer.Handle(ctx, event); err == nil {
		t.Fatalf("expected the failed write to surface")
	}
	if err := consumer.Handle(ctx, event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	entries, _ := store.ListAuditEntries(ctx, "p1", 10)
	if len(entries) != 1 {
		t.Fatalf("expected the redelivered event to be indexed once, got %d", len(entries))
	}
}

// consumerPublisher delivers synchronously so consumer failures reach the relay.
type consumerPublisher struct {
	consumer workers.AuditTrailConsumer
}

func (p consumerPublisher) PublishAuditEvent(ctx context.Context, event ports.AuditEnvelope) error {
	return p.consumer.Handle(ctx, event)
}

func TestOutboxRelayRedeliversUntilAuditTrailRecords(t *testing.T) {
	store := storeWithGrants(t, "u1")
	consumer := workers.AuditTrailConsumer{Recorder: &flakyRecorder{next: store, failures: 1}, Clock: store}
	relay := workers.OutboxRelay{Outbox: store, Publisher: consumerPublisher{consumer: consumer}, Clock: store}
	ctx := context.Background()

	if _, err := relay.RunOnce(ctx); !errors.Is(err, domainerrors.ErrEmit) {
		t.Fatalf("expected ErrEmit while the audit log is down, got %v", err)
	}
	if pending, _ := store.ListPendingOutbox(ctx, 10); len(pending) != 1 {
		t.Fatalf("undelivered event must stay pending, got %d", len(pending))
	}
	if n, err := relay.RunOnce(ctx); err != nil || n != 1 {
		t.Fatalf("expected redelivery, got %d err=%v", n, err)
	}
	entries, _ := store.ListAuditEntries(ctx, "p1", 10)
	if len(entries) != 1 || entries[0].EventType != string(entities.AuditEventAccessGranted) {
		t.Fatalf("expected one indexed grant, got %+v", entries)
	}
}
