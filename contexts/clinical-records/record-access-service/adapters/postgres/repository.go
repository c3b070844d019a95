package postgresadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the record access tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&participantModel{},
		&reportModel{},
		&outboxModel{},
		&idempotencyModel{},
		&eventDedupModel{},
		&auditEntryModel{},
	)
}

func (r *Repository) ResolveActor(ctx context.Context, actorID string) (entities.Participant, error) {
	participant, err := r.GetParticipant(ctx, actorID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrParticipantNotFound) {
			return entities.Participant{}, domainerrors.ErrIdentityUnresolved
		}
		return entities.Participant{}, err
	}
	return participant, nil
}

func (r *Repository) GetParticipant(ctx context.Context, participantID string) (entities.Participant, error) {
	var row participantModel
	err := r.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Participant{}, domainerrors.ErrParticipantNotFound
		}
		return entities.Participant{}, fmt.Errorf("%w: load participant: %w", domainerrors.ErrStore, err)
	}

	participant := row.toEntity()
	if !row.IsPatient {
		return participant, nil
	}

	var reports []reportModel
	if err := r.db.WithContext(ctx).
		Where("patient_id = ?", participantID).
		Order("sequence ASC").
		Find(&reports).
		Error; err != nil {
		return entities.Participant{}, fmt.Errorf("%w: load reports: %w", domainerrors.ErrStore, err)
	}
	for _, report := range reports {
		participant.Clinical.Reports = append(participant.Clinical.Reports, report.toEntity())
	}
	return participant, nil
}

func (r *Repository) GetPatient(ctx context.Context, patientID string) (entities.Participant, error) {
	participant, err := r.GetParticipant(ctx, patientID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrParticipantNotFound) {
			return entities.Participant{}, domainerrors.ErrPatientNotFound
		}
		return entities.Participant{}, err
	}
	if !participant.IsPatient() {
		return entities.Participant{}, domainerrors.ErrPatientNotFound
	}
	return participant, nil
}

func (r *Repository) SaveAuthorization(ctx context.Context, input ports.SaveAuthorizationInput) error {
	authorized := append([]string{}, input.Authorized...)
	return r.writeWithOutbox(ctx, input.ParticipantID, input.ExpectedVersion, input.Event, nil, map[string]any{
		"authorized": datatypes.JSONSlice[string](authorized),
		"version":    gorm.Expr("version + 1"),
		"updated_at": input.UpdatedAt.UTC(),
	}, nil)
}

func (r *Repository) AppendReport(ctx context.Context, input ports.AppendReportInput) error {
	return r.writeWithOutbox(ctx, input.PatientID, input.ExpectedVersion, input.Event, input.Replay, map[string]any{
		"version":    gorm.Expr("version + 1"),
		"updated_at": input.UpdatedAt.UTC(),
	}, func(tx *gorm.DB) error {
		row := reportModelFromEntity(input.PatientID, input.Sequence, input.Report)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrStaleRecord
			}
			return fmt.Errorf("%w: insert report: %w", domainerrors.ErrStore, err)
		}
		return nil
	})
}

func (r *Repository) MergeHealthData(ctx context.Context, input ports.MergeHealthDataInput) error {
	healthData := datatypes.JSONMap{}
	for key, value := range input.HealthData {
		healthData[key] = value
	}
	return r.writeWithOutbox(ctx, input.PatientID, input.ExpectedVersion, input.Event, input.Replay, map[string]any{
		"health_data": healthData,
		"version":     gorm.Expr("version + 1"),
		"updated_at":  input.UpdatedAt.UTC(),
	}, nil)
}

// writeWithOutbox applies a version-checked participant update, an optional
// extra write, the outbox insert and the optional idempotency replay in one
// transaction.
func (r *Repository) writeWithOutbox(
	ctx context.Context,
	participantID string,
	expectedVersion int64,
	event ports.OutboxEvent,
	replay *ports.IdempotencyRecord,
	updates map[string]any,
	extra func(tx *gorm.DB) error,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&participantModel{}).
			Where("participant_id = ? AND version = ?", participantID, expectedVersion).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("%w: update participant: %w", domainerrors.ErrStore, result.Error)
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrStaleRecord
		}

		if extra != nil {
			if err := extra(tx); err != nil {
				return err
			}
		}

		outboxRow := outboxModel{
			OutboxID:     event.OutboxID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      datatypes.JSON(event.Payload),
			Status:       outboxStatusPending,
			CreatedAt:    event.CreatedAt.UTC(),
		}
		if err := tx.Create(&outboxRow).Error; err != nil {
			return fmt.Errorf("%w: insert outbox: %w", domainerrors.ErrEmit, err)
		}

		if replay != nil {
			row := idempotencyModelFromPort(*replay)
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrIdempotencyConflict
				}
				return fmt.Errorf("%w: insert idempotency replay: %w", domainerrors.ErrStore, err)
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, domainerrors.ErrStore) &&
		!errors.Is(err, domainerrors.ErrEmit) &&
		!errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		err = fmt.Errorf("%w: commit: %w", domainerrors.ErrStore, err)
	}
	r.logger.Error("record write rolled back",
		"event", "records_postgres_write_failed",
		"module", "clinical-records/record-access-service",
		"layer", "adapter",
		"participant_id", participantID,
		"event_type", event.EventType,
		"error", err.Error(),
	)
	return err
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && !row.ExpiresAt.After(now.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", key).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return row.toPort(), true, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Order("outbox_id ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: outbox %s not found", domainerrors.ErrStore, outboxID)
	}
	return nil
}

// RecordAuditEntry reserves the event id and inserts the audit entry in one
// transaction. A rolled back insert releases the reservation.
func (r *Repository) RecordAuditEntry(
	ctx context.Context,
	entry entities.AuditEntry,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	alreadyProcessed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservation := eventDedupModel{
			EventID:     entry.EventID,
			PayloadHash: payloadHash,
			ExpiresAt:   expiresAt.UTC(),
			ProcessedAt: time.Now().UTC(),
		}
		createResult := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "event_id"}},
				DoNothing: true,
			}).
			Create(&reservation)
		if createResult.Error != nil {
			return createResult.Error
		}
		if createResult.RowsAffected == 0 {
			var existing eventDedupModel
			if err := tx.
				Select("payload_hash").
				Where("event_id = ?", entry.EventID).
				First(&existing).
				Error; err != nil {
				return err
			}
			if existing.PayloadHash != payloadHash {
				return domainerrors.ErrIdempotencyConflict
			}
			alreadyProcessed = true
			return nil
		}

		row := auditEntryModelFromEntity(entry)
		return tx.Create(&row).Error
	})
	if err != nil {
		if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
			err = fmt.Errorf("%w: record audit entry: %w", domainerrors.ErrStore, err)
		}
		return false, err
	}
	return alreadyProcessed, nil
}

func (r *Repository) ListAuditEntries(ctx context.Context, recordID string, limit int) ([]entities.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []auditEntryModel
	if err := r.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
