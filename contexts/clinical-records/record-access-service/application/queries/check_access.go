package queries

import (
	"context"
	"log/slog"
	"time"

	application "medrecords/contexts/clinical-records/record-access-service/application"
	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	"medrecords/contexts/clinical-records/record-access-service/domain/services"
	"medrecords/contexts/clinical-records/record-access-service/domain/valueobjects"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

type CheckAccessQuery struct {
	ActorID string
	UserID  string
}

// CheckAccessUseCase evaluates the access gate without mutating anything.
type CheckAccessUseCase struct {
	Identity   ports.IdentityResolver
	Repository ports.Repository
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (u CheckAccessUseCase) Execute(ctx context.Context, query CheckAccessQuery) (entities.AccessDecision, error) {
	actor, err := application.ResolveActor(ctx, u.Identity, query.ActorID)
	if err != nil {
		return entities.AccessDecision{}, err
	}
	patientID, err := valueobjects.NewParticipantID(query.UserID)
	if err != nil {
		return entities.AccessDecision{}, err
	}
	patient, err := application.LoadPatient(ctx, u.Repository, patientID.String())
	if err != nil {
		return entities.AccessDecision{}, err
	}

	allowed := services.IsAuthorized(actor.ParticipantID, patient)
	reason := "listed_in_authorized"
	if !allowed {
		reason = "not_in_authorized"
	}
	application.ResolveLogger(u.Logger).Debug("access checked",
		"event", "records_check_access_evaluated",
		"module", "clinical-records/record-access-service",
		"layer", "application",
		"actor_id", actor.ParticipantID,
		"user_id", patient.ParticipantID,
		"allowed", allowed,
	)
	return entities.AccessDecision{
		ActorID:   actor.ParticipantID,
		UserID:    patient.ParticipantID,
		Allowed:   allowed,
		Reason:    reason,
		CheckedAt: u.now(),
	}, nil
}

func (u CheckAccessUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
