package commands

import (
	"context"
	"fmt"
	"log/slog"

	application "medrecords/contexts/clinical-records/record-access-service/application"
	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/domain/valueobjects"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

// RevokeAccessCommand removes UserID from the actor's own record.
type RevokeAccessCommand struct {
	ActorID string
	UserID  string
	TraceID string
}

type RevokeAccessUseCase struct {
	Identity    ports.IdentityResolver
	Repository  ports.Repository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Metrics     ports.Metrics
	Logger      *slog.Logger
}

// Execute removes the first occurrence of UserID. Revoking an absent id
// succeeds without a write or an event.
func (u RevokeAccessUseCase) Execute(ctx context.Context, cmd RevokeAccessCommand) (result AccessChangeResult, err error) {
	defer func() {
		outcome := application.Outcome(err)
		if err == nil && !result.Changed {
			outcome = application.OutcomeNoop
		}
		application.ObserveTransaction(u.Metrics, "revoke_access", outcome)
	}()

	logger := application.ResolveLogger(u.Logger)
	logger.Info("revoke access started",
		"event", "records_revoke_access_started",
		"module", "clinical-records/record-access-service",
		"layer", "application",
		"actor_id", cmd.ActorID,
		"user_id", cmd.UserID,
	)

	actor, err := application.ResolveActor(ctx, u.Identity, cmd.ActorID)
	if err != nil {
		logger.Warn("revoke access actor unresolved",
			"event", "records_revoke_access_identity_failed",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", cmd.ActorID,
			"error", err.Error(),
		)
		return AccessChangeResult{}, err
	}

	userID, err := valueobjects.NewParticipantID(cmd.UserID)
	if err != nil {
		return AccessChangeResult{}, err
	}

	if !actor.Revoke(userID.String()) {
		logger.Info("revoke access not granted",
			"event", "records_revoke_access_noop",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actor.ParticipantID,
			"user_id", userID.String(),
		)
		return AccessChangeResult{
			ParticipantID: actor.ParticipantID,
			UserID:        userID.String(),
			Authorized:    actor.Authorized,
		}, nil
	}

	now := resolveNow(u.Clock)
	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return AccessChangeResult{}, fmt.Errorf("%w: allocate event id: %w", domainerrors.ErrEmit, err)
	}
	event, err := buildOutboxEvent(entities.AuditEvent{
		EventID:    eventID,
		RecordID:   actor.ParticipantID,
		ActorID:    actor.ParticipantID,
		TraceID:    cmd.TraceID,
		OccurredAt: now,
		Payload:    entities.AccessRevoked{UserID: userID.String()},
	})
	if err != nil {
		return AccessChangeResult{}, err
	}

	if err := u.Repository.SaveAuthorization(ctx, ports.SaveAuthorizationInput{
		ParticipantID:   actor.ParticipantID,
		Authorized:      actor.Authorized,
		ExpectedVersion: actor.Version,
		UpdatedAt:       now,
		Event:           event,
	}); err != nil {
		err = application.AsStoreError(err)
		logger.Error("revoke access write failed",
			"event", "records_revoke_access_write_failed",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actor.ParticipantID,
			"user_id", userID.String(),
			"error", err.Error(),
		)
		return AccessChangeResult{}, err
	}

	logger.Info("revoke access completed",
		"event", "records_revoke_access_completed",
		"module", "clinical-records/record-access-service",
		"layer", "application",
		"actor_id", actor.ParticipantID,
		"user_id", userID.String(),
		"event_id", eventID,
	)
	return AccessChangeResult{
		ParticipantID: actor.ParticipantID,
		UserID:        userID.String(),
		Authorized:    actor.Authorized,
		Changed:       true,
		EventID:       eventID,
	}, nil
}
