package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	application "medrecords/contexts/clinical-records/record-access-service/application"
	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

// OutboxRelay publishes committed audit events in creation order. A row is
// marked published only after the sink acknowledged it, so delivery is
// at-least-once.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.AuditEventPublisher
	Clock     ports.Clock
	Metrics   ports.Metrics
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce drains one batch and returns the number of rows published.
func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("records outbox list failed",
			"event", "records_outbox_list_failed",
			"module", "clinical-records/record-access-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	published := 0
	for _, row := range pending {
		var event ports.AuditEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			application.ObserveRelay(r.Metrics, row.EventType, "decode_failed")
			return published, fmt.Errorf("%w: decode outbox %s: %w", domainerrors.ErrEmit, row.OutboxID, err)
		}
		if err := r.Publisher.PublishAuditEvent(ctx, event); err != nil {
			application.ObserveRelay(r.Metrics, row.EventType, "publish_failed")
			logger.Error("records outbox publish failed",
				"event", "records_outbox_publish_failed",
				"module", "clinical-records/record-access-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", row.EventType,
				"error", err.Error(),
			)
			return published, fmt.Errorf("%w: %w", domainerrors.ErrEmit, err)
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			return published, err
		}
		application.ObserveRelay(r.Metrics, row.EventType, "published")
		published++
	}
	if published > 0 {
		logger.Debug("records outbox batch relayed",
			"event", "records_outbox_relayed",
			"module", "clinical-records/record-access-service",
			"layer", "worker",
			"count", published,
		)
	}
	return published, nil
}
