package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/ports"

	"github.com/google/uuid"
)

// Store is an in-memory adapter implementing the registry, outbox,
// idempotency, dedup and audit log ports. Every write applies the record
// change and its outbox row under one lock.
// It is intended for tests and local development wiring.
type Store struct {
	mu sync.RWMutex

	participants map[string]entities.Participant
	idempotency  map[string]ports.IdempotencyRecord
	outbox       map[string]outboxRow
	dedup        map[string]dedupEntry
	audit        []entities.AuditEntry
}

type outboxRow struct {
	ports.OutboxMessage
	PublishedAt *time.Time
}

type dedupEntry struct {
	PayloadHash string
	ExpiresAt   time.Time
}

func NewStore() *Store {
	return &Store{
		participants: make(map[string]entities.Participant),
		idempotency:  make(map[string]ports.IdempotencyRecord),
		outbox:       make(map[string]outboxRow),
		dedup:        make(map[string]dedupEntry),
	}
}

// Onboard registers a participant. Onboarding belongs to an external
// registry; this exists for development wiring and tests.
func (s *Store) Onboard(participant entities.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := participant.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	s.participants[stored.ParticipantID] = stored
}

func (s *Store) ResolveActor(_ context.Context, actorID string) (entities.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participant, ok := s.participants[actorID]
	if !ok {
		return entities.Participant{}, domainerrors.ErrIdentityUnresolved
	}
	return participant.Clone(), nil
}

func (s *Store) GetParticipant(_ context.Context, participantID string) (entities.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participant, ok := s.participants[participantID]
	if !ok {
		return entities.Participant{}, domainerrors.ErrParticipantNotFound
	}
	return participant.Clone(), nil
}

func (s *Store) GetPatient(_ context.Context, patientID string) (entities.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participant, ok := s.participants[patientID]
	if !ok || !participant.IsPatient() {
		return entities.Participant{}, domainerrors.ErrPatientNotFound
	}
	return participant.Clone(), nil
}

func (s *Store) SaveAuthorization(_ context.Context, input ports.SaveAuthorizationInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	participant, err := s.checkWrite(input.ParticipantID, input.ExpectedVersion, input.Event)
	if err != nil {
		return err
	}
	participant.Authorized = append([]string(nil), input.Authorized...)
	s.commit(participant, input.UpdatedAt, input.Event)
	return nil
}

func (s *Store) AppendReport(_ context.Context, input ports.AppendReportInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	participant, err := s.checkWrite(input.PatientID, input.ExpectedVersion, input.Event)
	if err != nil {
		return err
	}
	if err := s.checkReplay(input.Replay, input.UpdatedAt); err != nil {
		return err
	}
	profile, ok := participant.Profile()
	if !ok {
		return domainerrors.ErrPatientNotFound
	}
	if input.Sequence != len(profile.Reports)+1 {
		return fmt.Errorf("%w: report sequence %d does not follow %d", domainerrors.ErrStaleRecord, input.Sequence, len(profile.Reports))
	}
	profile.Reports = append(profile.Reports, input.Report)
	s.commit(participant, input.UpdatedAt, input.Event)
	s.storeReplay(input.Replay)
	return nil
}

func (s *Store) MergeHealthData(_ context.Context, input ports.MergeHealthDataInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	participant, err := s.checkWrite(input.PatientID, input.ExpectedVersion, input.Event)
	if err != nil {
		return err
	}
	if err := s.checkReplay(input.Replay, input.UpdatedAt); err != nil {
		return err
	}
	profile, ok := participant.Profile()
	if !ok {
		return domainerrors.ErrPatientNotFound
	}
	profile.HealthData = make(map[string]any, len(input.HealthData))
	for key, value := range input.HealthData {
		profile.HealthData[key] = value
	}
	s.commit(participant, input.UpdatedAt, input.Event)
	s.storeReplay(input.Replay)
	return nil
}

// checkWrite validates both halves of a write before anything is applied.
func (s *Store) checkWrite(participantID string, expectedVersion int64, event ports.OutboxEvent) (entities.Participant, error) {
	participant, ok := s.participants[participantID]
	if !ok {
		return entities.Participant{}, fmt.Errorf("%w: participant %s missing", domainerrors.ErrStore, participantID)
	}
	if participant.Version != expectedVersion {
		return entities.Participant{}, domainerrors.ErrStaleRecord
	}
	if event.OutboxID == "" {
		return entities.Participant{}, fmt.Errorf("%w: outbox id is required", domainerrors.ErrEmit)
	}
	if _, exists := s.outbox[event.OutboxID]; exists {
		return entities.Participant{}, fmt.Errorf("%w: duplicate outbox id %s", domainerrors.ErrEmit, event.OutboxID)
	}
	return participant.Clone(), nil
}

func (s *Store) commit(participant entities.Participant, updatedAt time.Time, event ports.OutboxEvent) {
	participant.Version++
	participant.UpdatedAt = updatedAt.UTC()
	s.participants[participant.ParticipantID] = participant
	s.outbox[event.OutboxID] = outboxRow{
		OutboxMessage: ports.OutboxMessage{
			OutboxID:     event.OutboxID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      append([]byte(nil), event.Payload...),
			CreatedAt:    event.CreatedAt.UTC(),
		},
	}
}

// checkReplay refuses a replay key that a live record already holds.
func (s *Store) checkReplay(replay *ports.IdempotencyRecord, now time.Time) error {
	if replay == nil {
		return nil
	}
	existing, ok := s.idempotency[replay.Key]
	if ok && existing.ExpiresAt.After(now) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (s *Store) storeReplay(replay *ports.IdempotencyRecord) {
	if replay == nil {
		return
	}
	record := *replay
	record.ResponsePayload = append([]byte(nil), replay.ResponsePayload...)
	s.idempotency[record.Key] = record
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.PublishedAt == nil {
			rows = append(rows, row.OutboxMessage)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].OutboxID < rows[j].OutboxID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[outboxID]
	if !ok {
		return errors.New("outbox record not found")
	}
	value := publishedAt.UTC()
	row.PublishedAt = &value
	s.outbox[outboxID] = row
	return nil
}

// OutboxCount returns the total number of outbox rows, published or not.
func (s *Store) OutboxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outbox)
}

// RecordAuditEntry reserves the event id and appends the entry under one
// lock. Expired reservations count as absent.
func (s *Store) RecordAuditEntry(_ context.Context, entry entities.AuditEntry, payloadHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.dedup[entry.EventID]
	if ok && existing.ExpiresAt.After(s.Now()) {
		if existing.PayloadHash != payloadHash {
			return false, domainerrors.ErrIdempotencyConflict
		}
		return true, nil
	}

	entry.Payload = append([]byte(nil), entry.Payload...)
	s.audit = append(s.audit, entry)
	s.dedup[entry.EventID] = dedupEntry{
		PayloadHash: payloadHash,
		ExpiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) ListAuditEntries(_ context.Context, recordID string, limit int) ([]entities.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.AuditEntry, 0)
	for i := len(s.audit) - 1; i >= 0; i-- {
		if s.audit[i].RecordID != recordID {
			continue
		}
		items = append(items, s.audit[i])
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
