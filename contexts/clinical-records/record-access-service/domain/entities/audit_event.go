package entities

import "time"

// AuditEventKind is the closed set of audit events emitted by record transactions.
type AuditEventKind string

const (
	AuditEventAccessGranted     AuditEventKind = "records.access_granted"
	AuditEventAccessRevoked     AuditEventKind = "records.access_revoked"
	AuditEventReportAdded       AuditEventKind = "records.report_added"
	AuditEventHealthDataUpdated AuditEventKind = "records.health_data_updated"
)

func (k AuditEventKind) Valid() bool {
	switch k {
	case AuditEventAccessGranted, AuditEventAccessRevoked, AuditEventReportAdded, AuditEventHealthDataUpdated:
		return true
	default:
		return false
	}
}

// AuditPayload is implemented only by the payload types in this package.
type AuditPayload interface {
	Kind() AuditEventKind
	auditPayload()
}

type AccessGranted struct {
	UserID string `json:"user_id"`
}

type AccessRevoked struct {
	UserID string `json:"user_id"`
}

type ReportAdded struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

type HealthDataUpdated struct {
	UserID     string         `json:"user_id"`
	HealthData map[string]any `json:"health_data"`
}

func (AccessGranted) Kind() AuditEventKind     { return AuditEventAccessGranted }
func (AccessRevoked) Kind() AuditEventKind     { return AuditEventAccessRevoked }
func (ReportAdded) Kind() AuditEventKind       { return AuditEventReportAdded }
func (HealthDataUpdated) Kind() AuditEventKind { return AuditEventHealthDataUpdated }

func (AccessGranted) auditPayload()     {}
func (AccessRevoked) auditPayload()     {}
func (ReportAdded) auditPayload()       {}
func (HealthDataUpdated) auditPayload() {}

// AuditEvent records one completed transaction against RecordID.
type AuditEvent struct {
	EventID    string
	RecordID   string
	ActorID    string
	TraceID    string
	OccurredAt time.Time
	Payload    AuditPayload
}

func (e AuditEvent) Kind() AuditEventKind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}
