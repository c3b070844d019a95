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

// AuthorizeAccessCommand grants UserID access to the actor's own record.
type AuthorizeAccessCommand struct {
	ActorID string
	UserID  string
	TraceID string
}

// AccessChangeResult is shared by authorize and revoke. Changed is false for
// the idempotent no-op cases, which write and emit nothing.
type AccessChangeResult struct {
	ParticipantID string   `json:"participant_id"`
	UserID        string   `json:"user_id"`
	Authorized    []string `json:"authorized"`
	Changed       bool     `json:"changed"`
	EventID       string   `json:"event_id,omitempty"`
}

type AuthorizeAccessUseCase struct {
	Identity    ports.IdentityResolver
	Repository  ports.Repository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Metrics     ports.Metrics
	Logger      *slog.Logger
}

// Execute appends UserID to the actor's authorization list, persisting the
// list and its audit event in one store transaction.
func (u AuthorizeAccessUseCase) Execute(ctx context.Context, cmd AuthorizeAccessCommand) (result AccessChangeResult, err error) {
	defer func() {
		outcome := application.Outcome(err)
		if err == nil && !result.Changed {
			outcome = application.OutcomeNoop
		}
		application.ObserveTransaction(u.Metrics, "authorize_access", outcome)
	}()

	logger := application.ResolveLogger(u.Logger)
	logger.Info("authorize access started",
		"event", "records_authorize_access_started",
		"module", "clinical-records/record-access-service",
		"layer", "application",
		"actor_id", cmd.ActorID,
		"user_id", cmd.UserID,
	)

	actor, err := application.ResolveActor(ctx, u.Identity, cmd.ActorID)
	if err != nil {
		logger.Warn("authorize access actor unresolved",
			"event", "records_authorize_access_identity_failed",
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

	changed, err := actor.Grant(userID.String())
	if err != nil {
		return AccessChangeResult{}, err
	}
	if !changed {
		logger.Info("authorize access already granted",
			"event", "records_authorize_access_noop",
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
		Payload:    entities.AccessGranted{UserID: userID.String()},
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
		logger.Error("authorize access write failed",
			"event", "records_authorize_access_write_failed",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actor.ParticipantID,
			"user_id", userID.String(),
			"error", err.Error(),
		)
		return AccessChangeResult{}, err
	}

	logger.Info("authorize access completed",
		"event", "records_authorize_access_completed",
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
