package postgresadapter

import (
	"time"

	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	"medrecords/contexts/clinical-records/record-access-service/ports"

	"gorm.io/datatypes"
)

type participantModel struct {
	ParticipantID string                      `gorm:"column:participant_id;primaryKey"`
	Authorized    datatypes.JSONSlice[string] `gorm:"column:authorized;type:jsonb"`
	IsPatient     bool                        `gorm:"column:is_patient"`
	HealthData    datatypes.JSONMap           `gorm:"column:health_data;type:jsonb"`
	Version       int64                       `gorm:"column:version"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at"`
}

func (participantModel) TableName() string {
	return "participants"
}

func (m participantModel) toEntity() entities.Participant {
	participant := entities.Participant{
		ParticipantID: m.ParticipantID,
		Authorized:    append([]string(nil), m.Authorized...),
		Version:       m.Version,
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
	if m.IsPatient {
		healthData := make(map[string]any, len(m.HealthData))
		for key, value := range m.HealthData {
			healthData[key] = value
		}
		participant.Clinical = &entities.ClinicalProfile{HealthData: healthData}
	}
	return participant
}

type reportModel struct {
	ReportID  string    `gorm:"column:report_id;primaryKey"`
	PatientID string    `gorm:"column:patient_id;uniqueIndex:patient_reports_patient_sequence"`
	Sequence  int       `gorm:"column:sequence;uniqueIndex:patient_reports_patient_sequence"`
	Title     string    `gorm:"column:title"`
	Body      string    `gorm:"column:body"`
	AuthorID  string    `gorm:"column:author_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (reportModel) TableName() string {
	return "patient_reports"
}

func reportModelFromEntity(patientID string, sequence int, report entities.Report) reportModel {
	return reportModel{
		ReportID:  report.ReportID,
		PatientID: patientID,
		Sequence:  sequence,
		Title:     report.Title,
		Body:      report.Text,
		AuthorID:  report.AuthorID,
		CreatedAt: report.Timestamp.UTC(),
	}
}

func (m reportModel) toEntity() entities.Report {
	return entities.Report{
		ReportID:  m.ReportID,
		Title:     m.Title,
		Text:      m.Body,
		AuthorID:  m.AuthorID,
		Timestamp: m.CreatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string         `gorm:"column:outbox_id;primaryKey"`
	EventType    string         `gorm:"column:event_type"`
	PartitionKey string         `gorm:"column:partition_key"`
	Payload      datatypes.JSON `gorm:"column:payload;type:jsonb"`
	Status       string         `gorm:"column:status;index"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	PublishedAt  *time.Time     `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "record_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	Operation       string    `gorm:"column:operation"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "record_idempotency"
}

func idempotencyModelFromPort(record ports.IdempotencyRecord) idempotencyModel {
	return idempotencyModel{
		Key:             record.Key,
		Operation:       record.Operation,
		RequestHash:     record.RequestHash,
		ResponsePayload: append([]byte(nil), record.ResponsePayload...),
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
}

func (m idempotencyModel) toPort() ports.IdempotencyRecord {
	return ports.IdempotencyRecord{
		Key:             m.Key,
		Operation:       m.Operation,
		RequestHash:     m.RequestHash,
		ResponsePayload: append([]byte(nil), m.ResponsePayload...),
		ExpiresAt:       m.ExpiresAt.UTC(),
	}
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "record_event_dedup"
}

type auditEntryModel struct {
	EventID    string         `gorm:"column:event_id;primaryKey"`
	EventType  string         `gorm:"column:event_type"`
	RecordID   string         `gorm:"column:record_id;index"`
	ActorID    string         `gorm:"column:actor_id"`
	Payload    datatypes.JSON `gorm:"column:payload;type:jsonb"`
	OccurredAt time.Time      `gorm:"column:occurred_at"`
	RecordedAt time.Time      `gorm:"column:recorded_at"`
}

func (auditEntryModel) TableName() string {
	return "record_audit_log"
}

func auditEntryModelFromEntity(entry entities.AuditEntry) auditEntryModel {
	return auditEntryModel{
		EventID:    entry.EventID,
		EventType:  entry.EventType,
		RecordID:   entry.RecordID,
		ActorID:    entry.ActorID,
		Payload:    datatypes.JSON(entry.Payload),
		OccurredAt: entry.OccurredAt.UTC(),
		RecordedAt: entry.RecordedAt.UTC(),
	}
}

func (m auditEntryModel) toEntity() entities.AuditEntry {
	return entities.AuditEntry{
		EventID:    m.EventID,
		EventType:  m.EventType,
		RecordID:   m.RecordID,
		ActorID:    m.ActorID,
		Payload:    append([]byte(nil), m.Payload...),
		OccurredAt: m.OccurredAt.UTC(),
		RecordedAt: m.RecordedAt.UTC(),
	}
}
