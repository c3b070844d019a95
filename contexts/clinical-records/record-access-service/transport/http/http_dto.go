package httptransport

import "time"

// AccessChangeRequest is the body of authorize and revoke calls.
type AccessChangeRequest struct {
	UserID string `json:"user_id"`
}

type AccessChangeResponse struct {
	ParticipantID string   `json:"participant_id"`
	UserID        string   `json:"user_id"`
	Authorized    []string `json:"authorized"`
	Changed       bool     `json:"changed"`
	EventID       string   `json:"event_id,omitempty"`
}

type AddReportRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type ReportDTO struct {
	ReportID  string    `json:"report_id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	Timestamp time.Time `json:"timestamp"`
}

type AddReportResponse struct {
	PatientID string    `json:"patient_id"`
	Report    ReportDTO `json:"report"`
	EventID   string    `json:"event_id"`
	Replayed  bool      `json:"replayed"`
}

type UpdateHealthDataRequest struct {
	HealthData map[string]any `json:"health_data"`
}

type UpdateHealthDataResponse struct {
	PatientID  string         `json:"patient_id"`
	Applied    map[string]any `json:"applied"`
	Skipped    []string       `json:"skipped"`
	HealthData map[string]any `json:"health_data"`
	EventID    string         `json:"event_id"`
	Replayed   bool           `json:"replayed"`
}

type PatientRecordResponse struct {
	PatientID  string         `json:"patient_id"`
	Reports    []ReportDTO    `json:"reports"`
	HealthData map[string]any `json:"health_data"`
	Authorized []string       `json:"authorized,omitempty"`
	Version    int64          `json:"version"`
}

type AuthorizedListResponse struct {
	ParticipantID string   `json:"participant_id"`
	Authorized    []string `json:"authorized"`
}

type AccessDecisionResponse struct {
	ActorID   string    `json:"actor_id"`
	UserID    string    `json:"user_id"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	CheckedAt time.Time `json:"checked_at"`
}

type AuditEntryDTO struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	ActorID    string    `json:"actor_id"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AuditTrailResponse struct {
	ParticipantID string          `json:"participant_id"`
	Entries       []AuditEntryDTO `json:"entries"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
