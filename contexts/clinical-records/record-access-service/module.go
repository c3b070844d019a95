package recordaccess

import (
	"log/slog"
	"time"

	httpadapter "medrecords/contexts/clinical-records/record-access-service/adapters/http"
	"medrecords/contexts/clinical-records/record-access-service/adapters/memory"
	"medrecords/contexts/clinical-records/record-access-service/application/commands"
	"medrecords/contexts/clinical-records/record-access-service/application/queries"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

// Module is the record-access-service composition root exposed to runtime wiring.
type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

// Dependencies captures all runtime ports/config required by NewModule.
type Dependencies struct {
	Identity       ports.IdentityResolver
	Repository     ports.Repository
	Idempotency    ports.IdempotencyStore
	AuditLog       ports.AuditLog
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	Metrics        ports.Metrics
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// NewModule wires the record transactions, read queries and transport handler.
func NewModule(deps Dependencies) Module {
	handler := httpadapter.Handler{
		AuthorizeAccess: commands.AuthorizeAccessUseCase{
			Identity:    deps.Identity,
			Repository:  deps.Repository,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Metrics:     deps.Metrics,
			Logger:      deps.Logger,
		},
		RevokeAccess: commands.RevokeAccessUseCase{
			Identity:    deps.Identity,
			Repository:  deps.Repository,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Metrics:     deps.Metrics,
			Logger:      deps.Logger,
		},
		AddReport: commands.AddReportUseCase{
			Identity:       deps.Identity,
			Repository:     deps.Repository,
			Idempotency:    deps.Idempotency,
			Clock:          deps.Clock,
			IDGenerator:    deps.IDGenerator,
			Metrics:        deps.Metrics,
			IdempotencyTTL: deps.IdempotencyTTL,
			Logger:         deps.Logger,
		},
		UpdateHealthData: commands.UpdateHealthDataUseCase{
			Identity:       deps.Identity,
			Repository:     deps.Repository,
			Idempotency:    deps.Idempotency,
			Clock:          deps.Clock,
			IDGenerator:    deps.IDGenerator,
			Metrics:        deps.Metrics,
			IdempotencyTTL: deps.IdempotencyTTL,
			Logger:         deps.Logger,
		},
		GetPatientRecord: queries.GetPatientRecordUseCase{
			Identity:   deps.Identity,
			Repository: deps.Repository,
			Logger:     deps.Logger,
		},
		ListAuthorized: queries.ListAuthorizedUseCase{
			Identity: deps.Identity,
			Logger:   deps.Logger,
		},
		CheckAccess: queries.CheckAccessUseCase{
			Identity:   deps.Identity,
			Repository: deps.Repository,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
		},
		ListAuditTrail: queries.ListAuditTrailUseCase{
			Identity: deps.Identity,
			AuditLog: deps.AuditLog,
			Logger:   deps.Logger,
		},
		Logger: deps.Logger,
	}
	return Module{Handler: handler}
}

// NewInMemoryModule builds a development/testing module with in-memory adapters.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Identity:       store,
		Repository:     store,
		Idempotency:    store,
		AuditLog:       store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
