package entities

import "time"

// AccessDecision is returned by access check APIs.
type AccessDecision struct {
	ActorID   string    `json:"actor_id"`
	UserID    string    `json:"user_id"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	CheckedAt time.Time `json:"checked_at"`
}

// PatientRecord is the read view of a patient's clinical fields.
type PatientRecord struct {
	PatientID  string         `json:"patient_id"`
	Reports    []Report       `json:"reports"`
	HealthData map[string]any `json:"health_data"`
	Authorized []string       `json:"authorized,omitempty"`
	Version    int64          `json:"version"`
}

// AuditEntry is a consumed audit event kept for external indexing.
type AuditEntry struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	RecordID   string    `json:"record_id"`
	ActorID    string    `json:"actor_id"`
	Payload    []byte    `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at"`
}
