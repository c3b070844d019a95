package commands

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"medrecords/contexts/clinical-records/record-access-service/ports"
)

const defaultIdempotencyTTL = 7 * 24 * time.Hour

func hashRequest(payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func idempotencyKey(operation string, actorID string, key string) string {
	return "records_idempotency:" + operation + ":" + actorID + ":" + key
}

func resolveNow(clock ports.Clock) time.Time {
	if clock != nil {
		return clock.Now().UTC()
	}
	return time.Now().UTC()
}
