package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "medrecords/contexts/clinical-records/record-access-service/application"
	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/domain/services"
	"medrecords/contexts/clinical-records/record-access-service/domain/valueobjects"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

// UpdateHealthDataCommand merges HealthData into patient UserID.
type UpdateHealthDataCommand struct {
	IdempotencyKey string
	ActorID        string
	UserID         string
	HealthData     map[string]any
	TraceID        string
}

type UpdateHealthDataResult struct {
	PatientID  string         `json:"patient_id"`
	Applied    map[string]any `json:"applied"`
	Skipped    []string       `json:"skipped"`
	HealthData map[string]any `json:"health_data"`
	EventID    string         `json:"event_id"`
	Replayed   bool           `json:"replayed"`
}

type UpdateHealthDataUseCase struct {
	Identity       ports.IdentityResolver
	Repository     ports.Repository
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	Metrics        ports.Metrics
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// Execute merges the non-reserved, non-falsy fields of the update into the
// patient's health data. Fields not named in the update are left untouched.
func (u UpdateHealthDataUseCase) Execute(ctx context.Context, cmd UpdateHealthDataCommand) (result UpdateHealthDataResult, err error) {
	defer func() {
		outcome := application.Outcome(err)
		if err == nil && result.Replayed {
			outcome = "replayed"
		}
		application.ObserveTransaction(u.Metrics, "update_health_data", outcome)
	}()

	logger := application.ResolveLogger(u.Logger)
	logger.Info("update health data started",
		"event", "records_update_health_data_started",
		"module", "clinical-records/record-access-service",
		"layer", "application",
		"actor_id", cmd.ActorID,
		"user_id", cmd.UserID,
		"field_count", len(cmd.HealthData),
	)

	actor, err := application.ResolveActor(ctx, u.Identity, cmd.ActorID)
	if err != nil {
		logger.Warn("update health data actor unresolved",
			"event", "records_update_health_data_identity_failed",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", cmd.ActorID,
			"error", err.Error(),
		)
		return UpdateHealthDataResult{}, err
	}

	patientID, err := valueobjects.NewParticipantID(cmd.UserID)
	if err != nil {
		return UpdateHealthDataResult{}, err
	}

	now := resolveNow(u.Clock)
	key := strings.TrimSpace(cmd.IdempotencyKey)
	var requestHash string
	if key != "" && u.Idempotency != nil {
		requestHash, err = hashRequest(struct {
			UserID     string         `json:"user_id"`
			HealthData map[string]any `json:"health_data"`
		}{
			UserID:     patientID.String(),
			HealthData: cmd.HealthData,
		})
		if err != nil {
			return UpdateHealthDataResult{}, err
		}
		key = idempotencyKey("update_health_data", actor.ParticipantID, key)

		existing, found, err := u.Idempotency.GetRecord(ctx, key, now)
		if err != nil {
			return UpdateHealthDataResult{}, application.AsStoreError(err)
		}
		if found {
			if existing.RequestHash != requestHash {
				return UpdateHealthDataResult{}, domainerrors.ErrIdempotencyConflict
			}
			var replay UpdateHealthDataResult
			if err := json.Unmarshal(existing.ResponsePayload, &replay); err != nil {
				return UpdateHealthDataResult{}, application.AsStoreError(fmt.Errorf("decode replay: %w", err))
			}
			replay.Replayed = true
			return replay, nil
		}
	} else {
		key = ""
	}

	patient, err := application.LoadPatient(ctx, u.Repository, patientID.String())
	if err != nil {
		logger.Warn("update health data patient lookup failed",
			"event", "records_update_health_data_lookup_failed",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actor.ParticipantID,
			"user_id", patientID.String(),
			"error", err.Error(),
		)
		return UpdateHealthDataResult{}, err
	}
	if !services.IsAuthorized(actor.ParticipantID, patient) {
		logger.Warn("update health data denied",
			"event", "records_update_health_data_denied",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actor.ParticipantID,
			"user_id", patientID.String(),
		)
		return UpdateHealthDataResult{}, domainerrors.ErrNotAuthorized
	}

	applied, skipped := services.FilterHealthData(cmd.HealthData)
	profile, _ := patient.Profile()
	profile.MergeHealthData(applied)

	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return UpdateHealthDataResult{}, fmt.Errorf("%w: allocate event id: %w", domainerrors.ErrEmit, err)
	}
	event, err := buildOutboxEvent(entities.AuditEvent{
		EventID:    eventID,
		RecordID:   patient.ParticipantID,
		ActorID:    actor.ParticipantID,
		TraceID:    cmd.TraceID,
		OccurredAt: now,
		Payload: entities.HealthDataUpdated{
			UserID:     patient.ParticipantID,
			HealthData: applied,
		},
	})
	if err != nil {
		return UpdateHealthDataResult{}, err
	}

	written := UpdateHealthDataResult{
		PatientID:  patient.ParticipantID,
		Applied:    applied,
		Skipped:    skipped,
		HealthData: profile.HealthData,
		EventID:    eventID,
	}
	replay, err := u.buildReplay(key, requestHash, written, now)
	if err != nil {
		return UpdateHealthDataResult{}, err
	}

	if err := u.Repository.MergeHealthData(ctx, ports.MergeHealthDataInput{
		PatientID:       patient.ParticipantID,
		HealthData:      profile.HealthData,
		ExpectedVersion: patient.Version,
		UpdatedAt:       now,
		Event:           event,
		Replay:          replay,
	}); err != nil {
		err = application.AsStoreError(err)
		logger.Error("update health data write failed",
			"event", "records_update_health_data_write_failed",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actor.ParticipantID,
			"user_id", patient.ParticipantID,
			"error", err.Error(),
		)
		return UpdateHealthDataResult{}, err
	}

	result = written

	logger.Info("update health data completed",
		"event", "records_update_health_data_completed",
		"module", "clinical-records/record-access-service",
		"layer", "application",
		"actor_id", actor.ParticipantID,
		"user_id", patient.ParticipantID,
		"applied_count", len(applied),
		"skipped_count", len(skipped),
		"event_id", eventID,
	)
	return result, nil
}

// buildReplay prepares the idempotency record written with the change, or
// nil when the call carried no key.
func (u UpdateHealthDataUseCase) buildReplay(key string, requestHash string, result UpdateHealthDataResult, now time.Time) (*ports.IdempotencyRecord, error) {
	if key == "" {
		return nil, nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%w: encode replay: %w", domainerrors.ErrStore, err)
	}
	return &ports.IdempotencyRecord{
		Key:             key,
		Operation:       "update_health_data",
		RequestHash:     requestHash,
		ResponsePayload: payload,
		ExpiresAt:       now.Add(u.idempotencyTTL()),
	}, nil
}

func (u UpdateHealthDataUseCase) idempotencyTTL() time.Duration {
	if u.IdempotencyTTL <= 0 {
		return defaultIdempotencyTTL
	}
	return u.IdempotencyTTL
}
