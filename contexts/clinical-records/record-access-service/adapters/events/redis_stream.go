package events

import (
	"context"
	"encoding/json"
	"fmt"

	"medrecords/contexts/clinical-records/record-access-service/ports"

	"github.com/redis/go-redis/v9"
)

const DefaultAuditStream = "records:audit"

// RedisStreamPublisher appends audit events to a Redis stream for external
// indexers.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client *redis.Client, stream string, maxLen int64) *RedisStreamPublisher {
	if stream == "" {
		stream = DefaultAuditStream
	}
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisStreamPublisher) PublishAuditEvent(ctx context.Context, event ports.AuditEnvelope) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit envelope: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event_id":      event.EventID,
			"event_type":    event.EventType,
			"partition_key": event.PartitionKey,
			"envelope":      string(body),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
