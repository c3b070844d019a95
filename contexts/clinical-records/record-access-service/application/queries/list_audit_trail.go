package queries

import (
	"context"
	"log/slog"

	application "medrecords/contexts/clinical-records/record-access-service/application"
	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

type ListAuditTrailQuery struct {
	ActorID string
	Limit   int
}

// ListAuditTrailUseCase lets a participant read the audit entries recorded
// against their own record.
type ListAuditTrailUseCase struct {
	Identity ports.IdentityResolver
	AuditLog ports.AuditLog
	Logger   *slog.Logger
}

func (u ListAuditTrailUseCase) Execute(ctx context.Context, query ListAuditTrailQuery) ([]entities.AuditEntry, error) {
	actor, err := application.ResolveActor(ctx, u.Identity, query.ActorID)
	if err != nil {
		return nil, err
	}
	if u.AuditLog == nil {
		return nil, domainerrors.ErrStore
	}
	limit := query.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, err := u.AuditLog.ListAuditEntries(ctx, actor.ParticipantID, limit)
	if err != nil {
		application.ResolveLogger(u.Logger).Error("audit trail lookup failed",
			"event", "records_audit_trail_lookup_failed",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actor.ParticipantID,
			"error", err.Error(),
		)
		return nil, application.AsStoreError(err)
	}
	return entries, nil
}
