package queries

import (
	"context"
	"log/slog"

	application "medrecords/contexts/clinical-records/record-access-service/application"
	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/domain/services"
	"medrecords/contexts/clinical-records/record-access-service/domain/valueobjects"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

type GetPatientRecordQuery struct {
	ActorID string
	UserID  string
}

// GetPatientRecordUseCase returns a patient's clinical fields to the owner or
// to a participant on the owner's authorization list.
type GetPatientRecordUseCase struct {
	Identity   ports.IdentityResolver
	Repository ports.Repository
	Logger     *slog.Logger
}

func (u GetPatientRecordUseCase) Execute(ctx context.Context, query GetPatientRecordQuery) (entities.PatientRecord, error) {
	logger := application.ResolveLogger(u.Logger)

	actor, err := application.ResolveActor(ctx, u.Identity, query.ActorID)
	if err != nil {
		return entities.PatientRecord{}, err
	}
	patientID, err := valueobjects.NewParticipantID(query.UserID)
	if err != nil {
		return entities.PatientRecord{}, err
	}
	patient, err := application.LoadPatient(ctx, u.Repository, patientID.String())
	if err != nil {
		return entities.PatientRecord{}, err
	}

	owner := actor.ParticipantID == patient.ParticipantID
	if !owner && !services.IsAuthorized(actor.ParticipantID, patient) {
		logger.Warn("patient record read denied",
			"event", "records_get_patient_denied",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actor.ParticipantID,
			"user_id", patient.ParticipantID,
		)
		return entities.PatientRecord{}, domainerrors.ErrNotAuthorized
	}

	profile, _ := patient.Profile()
	record := entities.PatientRecord{
		PatientID:  patient.ParticipantID,
		Reports:    profile.Reports,
		HealthData: profile.HealthData,
		Version:    patient.Version,
	}
	if record.Reports == nil {
		record.Reports = []entities.Report{}
	}
	if record.HealthData == nil {
		record.HealthData = map[string]any{}
	}
	if owner {
		record.Authorized = patient.Authorized
	}
	return record, nil
}
