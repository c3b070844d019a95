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

// AddReportCommand appends a report to patient UserID on behalf of ActorID.
type AddReportCommand struct {
	IdempotencyKey string
	ActorID        string
	UserID         string
	Title          string
	Text           string
	TraceID        string
}

type AddReportResult struct {
	PatientID string          `json:"patient_id"`
	Report    entities.Report `json:"report"`
	EventID   string          `json:"event_id"`
	Replayed  bool            `json:"replayed"`
}

type AddReportUseCase struct {
	Identity       ports.IdentityResolver
	Repository     ports.Repository
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	Metrics        ports.Metrics
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// Execute resolves the patient, checks the actor against the patient's
// authorization list and appends the report with its audit event. Lookup and
// gate failures return before anything is written.
func (u AddReportUseCase) Execute(ctx context.Context, cmd AddReportCommand) (result AddReportResult, err error) {
	defer func() {
		outcome := application.Outcome(err)
		if err == nil && result.Replayed {
			outcome = "replayed"
		}
		application.ObserveTransaction(u.Metrics, "add_report", outcome)
	}()

	logger := application.ResolveLogger(u.Logger)
	logger.Info("add report started",
		"event", "records_add_report_started",
		"module", "clinical-records/record-access-service",
		"layer", "application",
		"actor_id", cmd.ActorID,
		"user_id", cmd.UserID,
	)

	actor, err := application.ResolveActor(ctx, u.Identity, cmd.ActorID)
	if err != nil {
		logger.Warn("add report actor unresolved",
			"event", "records_add_report_identity_failed",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", cmd.ActorID,
			"error", err.Error(),
		)
		return AddReportResult{}, err
	}

	patientID, err := valueobjects.NewParticipantID(cmd.UserID)
	if err != nil {
		return AddReportResult{}, err
	}

	now := resolveNow(u.Clock)
	key := strings.TrimSpace(cmd.IdempotencyKey)
	var requestHash string
	if key != "" && u.Idempotency != nil {
		requestHash, err = hashRequest(struct {
			UserID string `json:"user_id"`
			Title  string `json:"title"`
			Text   string `json:"text"`
		}{
			UserID: patientID.String(),
			Title:  cmd.Title,
			Text:   cmd.Text,
		})
		if err != nil {
			return AddReportResult{}, err
		}
		key = idempotencyKey("add_report", actor.ParticipantID, key)

		existing, found, err := u.Idempotency.GetRecord(ctx, key, now)
		if err != nil {
			return AddReportResult{}, application.AsStoreError(err)
		}
		if found {
			if existing.RequestHash != requestHash {
				return AddReportResult{}, domainerrors.ErrIdempotencyConflict
			}
			var replay AddReportResult
			if err := json.Unmarshal(existing.ResponsePayload, &replay); err != nil {
				return AddReportResult{}, application.AsStoreError(fmt.Errorf("decode replay: %w", err))
			}
			replay.Replayed = true
			logger.Info("add report replayed",
				"event", "records_add_report_replayed",
				"module", "clinical-records/record-access-service",
				"layer", "application",
				"actor_id", actor.ParticipantID,
				"user_id", patientID.String(),
			)
			return replay, nil
		}
	} else {
		key = ""
	}

	patient, err := application.LoadPatient(ctx, u.Repository, patientID.String())
	if err != nil {
		logger.Warn("add report patient lookup failed",
			"event", "records_add_report_lookup_failed",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actor.ParticipantID,
			"user_id", patientID.String(),
			"error", err.Error(),
		)
		return AddReportResult{}, err
	}
	if !services.IsAuthorized(actor.ParticipantID, patient) {
		logger.Warn("add report denied",
			"event", "records_add_report_denied",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actor.ParticipantID,
			"user_id", patientID.String(),
		)
		return AddReportResult{}, domainerrors.ErrNotAuthorized
	}

	reportID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return AddReportResult{}, application.AsStoreError(err)
	}
	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return AddReportResult{}, fmt.Errorf("%w: allocate event id: %w", domainerrors.ErrEmit, err)
	}

	profile, _ := patient.Profile()
	report := profile.AppendReport(entities.Report{
		ReportID:  reportID,
		Title:     cmd.Title,
		Text:      cmd.Text,
		AuthorID:  actor.ParticipantID,
		Timestamp: now,
	})

	event, err := buildOutboxEvent(entities.AuditEvent{
		EventID:    eventID,
		RecordID:   patient.ParticipantID,
		ActorID:    actor.ParticipantID,
		TraceID:    cmd.TraceID,
		OccurredAt: now,
		Payload: entities.ReportAdded{
			UserID: patient.ParticipantID,
			Title:  cmd.Title,
			Text:   cmd.Text,
		},
	})
	if err != nil {
		return AddReportResult{}, err
	}

	written := AddReportResult{
		PatientID: patient.ParticipantID,
		Report:    report,
		EventID:   eventID,
	}
	replay, err := u.buildReplay(key, requestHash, written, now)
	if err != nil {
		return AddReportResult{}, err
	}

	if err := u.Repository.AppendReport(ctx, ports.AppendReportInput{
		PatientID:       patient.ParticipantID,
		Report:          report,
		Sequence:        len(profile.Reports),
		ExpectedVersion: patient.Version,
		UpdatedAt:       now,
		Event:           event,
		Replay:          replay,
	}); err != nil {
		err = application.AsStoreError(err)
		logger.Error("add report write failed",
			"event", "records_add_report_write_failed",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actor.ParticipantID,
			"user_id", patient.ParticipantID,
			"error", err.Error(),
		)
		return AddReportResult{}, err
	}

	result = written

	logger.Info("add report completed",
		"event", "records_add_report_completed",
		"module", "clinical-records/record-access-service",
		"layer", "application",
		"actor_id", actor.ParticipantID,
		"user_id", patient.ParticipantID,
		"report_id", report.ReportID,
		"event_id", eventID,
	)
	return result, nil
}

// buildReplay prepares the idempotency record written with the change, or
// nil when the call carried no key.
func (u AddReportUseCase) buildReplay(key string, requestHash string, result AddReportResult, now time.Time) (*ports.IdempotencyRecord, error) {
	if key == "" {
		return nil, nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%w: encode replay: %w", domainerrors.ErrStore, err)
	}
	return &ports.IdempotencyRecord{
		Key:             key,
		Operation:       "add_report",
		RequestHash:     requestHash,
		ResponsePayload: payload,
		ExpiresAt:       now.Add(u.idempotencyTTL()),
	}, nil
}

func (u AddReportUseCase) idempotencyTTL() time.Duration {
	if u.IdempotencyTTL <= 0 {
		return defaultIdempotencyTTL
	}
	return u.IdempotencyTTL
}
