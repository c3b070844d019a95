package queries

import (
	"context"
	"log/slog"

	application "medrecords/contexts/clinical-records/record-access-service/application"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

// ListAuthorizedUseCase returns the caller's own authorization list.
type ListAuthorizedUseCase struct {
	Identity ports.IdentityResolver
	Logger   *slog.Logger
}

func (u ListAuthorizedUseCase) Execute(ctx context.Context, actorID string) ([]string, error) {
	actor, err := application.ResolveActor(ctx, u.Identity, actorID)
	if err != nil {
		application.ResolveLogger(u.Logger).Warn("list authorized actor unresolved",
			"event", "records_list_authorized_identity_failed",
			"module", "clinical-records/record-access-service",
			"layer", "application",
			"actor_id", actorID,
			"error", err.Error(),
		)
		return nil, err
	}
	items := make([]string, 0, len(actor.Authorized))
	items = append(items, actor.Authorized...)
	return items, nil
}
