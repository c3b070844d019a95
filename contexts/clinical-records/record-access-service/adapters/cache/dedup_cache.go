package cache

import (
	"context"
	"fmt"
	"time"

	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/ports"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupCache answers repeat deliveries from a bounded LRU before falling
// back to the durable recorder. Only recorded events enter the cache.
type DedupCache struct {
	next ports.AuditEntryRecorder
	seen *lru.Cache[string, string]
}

func NewDedupCache(next ports.AuditEntryRecorder, size int) (*DedupCache, error) {
	if size <= 0 {
		size = 4096
	}
	seen, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create dedup cache: %w", err)
	}
	return &DedupCache{next: next, seen: seen}, nil
}

func (c *DedupCache) RecordAuditEntry(
	ctx context.Context,
	entry entities.AuditEntry,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	if hash, ok := c.seen.Get(entry.EventID); ok {
		if hash != payloadHash {
			return false, domainerrors.ErrIdempotencyConflict
		}
		return true, nil
	}
	alreadyProcessed, err := c.next.RecordAuditEntry(ctx, entry, payloadHash, expiresAt)
	if err != nil {
		return false, err
	}
	c.seen.Add(entry.EventID, payloadHash)
	return alreadyProcessed, nil
}
