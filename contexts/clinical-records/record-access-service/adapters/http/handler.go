package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	application "medrecords/contexts/clinical-records/record-access-service/application"
	"medrecords/contexts/clinical-records/record-access-service/application/commands"
	"medrecords/contexts/clinical-records/record-access-service/application/queries"
	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	httptransport "medrecords/contexts/clinical-records/record-access-service/transport/http"
)

// Handler maps HTTP DTOs to application commands/queries.
type Handler struct {
	AuthorizeAccess  commands.AuthorizeAccessUseCase
	RevokeAccess     commands.RevokeAccessUseCase
	AddReport        commands.AddReportUseCase
	UpdateHealthData commands.UpdateHealthDataUseCase
	GetPatientRecord queries.GetPatientRecordUseCase
	ListAuthorized   queries.ListAuthorizedUseCase
	CheckAccess      queries.CheckAccessUseCase
	ListAuditTrail   queries.ListAuditTrailUseCase
	Logger           *slog.Logger
}

// AuthorizeAccessHandler grants request.UserID access to the caller's record.
func (h Handler) AuthorizeAccessHandler(
	ctx context.Context,
	actorID string,
	requestID string,
	request httptransport.AccessChangeRequest,
) (httptransport.AccessChangeResponse, error) {
	result, err := h.AuthorizeAccess.Execute(ctx, commands.AuthorizeAccessCommand{
		ActorID: actorID,
		UserID:  request.UserID,
		TraceID: requestID,
	})
	if err != nil {
		h.logFailure("authorize", actorID, request.UserID, err)
		return httptransport.AccessChangeResponse{}, err
	}
	return toAccessChangeResponse(result), nil
}

// RevokeAccessHandler removes request.UserID from the caller's record.
func (h Handler) RevokeAccessHandler(
	ctx context.Context,
	actorID string,
	requestID string,
	request httptransport.AccessChangeRequest,
) (httptransport.AccessChangeResponse, error) {
	result, err := h.RevokeAccess.Execute(ctx, commands.RevokeAccessCommand{
		ActorID: actorID,
		UserID:  request.UserID,
		TraceID: requestID,
	})
	if err != nil {
		h.logFailure("revoke", actorID, request.UserID, err)
		return httptransport.AccessChangeResponse{}, err
	}
	return toAccessChangeResponse(result), nil
}

func (h Handler) AddReportHandler(
	ctx context.Context,
	actorID string,
	patientID string,
	requestID string,
	idempotencyKey string,
	request httptransport.AddReportRequest,
) (httptransport.AddReportResponse, error) {
	result, err := h.AddReport.Execute(ctx, commands.AddReportCommand{
		IdempotencyKey: idempotencyKey,
		ActorID:        actorID,
		UserID:         patientID,
		Title:          request.Title,
		Text:           request.Text,
		TraceID:        requestID,
	})
	if err != nil {
		h.logFailure("add_report", actorID, patientID, err)
		return httptransport.AddReportResponse{}, err
	}
	return httptransport.AddReportResponse{
		PatientID: result.PatientID,
		Report:    toReportDTO(result.Report),
		EventID:   result.EventID,
		Replayed:  result.Replayed,
	}, nil
}

func (h Handler) UpdateHealthDataHandler(
	ctx context.Context,
	actorID string,
	patientID string,
	requestID string,
	idempotencyKey string,
	request httptransport.UpdateHealthDataRequest,
) (httptransport.UpdateHealthDataResponse, error) {
	result, err := h.UpdateHealthData.Execute(ctx, commands.UpdateHealthDataCommand{
		IdempotencyKey: idempotencyKey,
		ActorID:        actorID,
		UserID:         patientID,
		HealthData:     request.HealthData,
		TraceID:        requestID,
	})
	if err != nil {
		h.logFailure("update_health_data", actorID, patientID, err)
		return httptransport.UpdateHealthDataResponse{}, err
	}
	return httptransport.UpdateHealthDataResponse{
		PatientID:  result.PatientID,
		Applied:    result.Applied,
		Skipped:    result.Skipped,
		HealthData: result.HealthData,
		EventID:    result.EventID,
		Replayed:   result.Replayed,
	}, nil
}

func (h Handler) GetPatientRecordHandler(ctx context.Context, actorID string, patientID string) (httptransport.PatientRecordResponse, error) {
	record, err := h.GetPatientRecord.Execute(ctx, queries.GetPatientRecordQuery{
		ActorID: actorID,
		UserID:  patientID,
	})
	if err != nil {
		return httptransport.PatientRecordResponse{}, err
	}
	reports := make([]httptransport.ReportDTO, 0, len(record.Reports))
	for _, report := range record.Reports {
		reports = append(reports, toReportDTO(report))
	}
	return httptransport.PatientRecordResponse{
		PatientID:  record.PatientID,
		Reports:    reports,
		HealthData: record.HealthData,
		Authorized: record.Authorized,
		Version:    record.Version,
	}, nil
}

func (h Handler) ListAuthorizedHandler(ctx context.Context, actorID string) (httptransport.AuthorizedListResponse, error) {
	items, err := h.ListAuthorized.Execute(ctx, actorID)
	if err != nil {
		return httptransport.AuthorizedListResponse{}, err
	}
	return httptransport.AuthorizedListResponse{
		ParticipantID: actorID,
		Authorized:    items,
	}, nil
}

func (h Handler) CheckAccessHandler(ctx context.Context, actorID string, patientID string) (httptransport.AccessDecisionResponse, error) {
	decision, err := h.CheckAccess.Execute(ctx, queries.CheckAccessQuery{
		ActorID: actorID,
		UserID:  patientID,
	})
	if err != nil {
		return httptransport.AccessDecisionResponse{}, err
	}
	return httptransport.AccessDecisionResponse{
		ActorID:   decision.ActorID,
		UserID:    decision.UserID,
		Allowed:   decision.Allowed,
		Reason:    decision.Reason,
		CheckedAt: decision.CheckedAt,
	}, nil
}

func (h Handler) ListAuditTrailHandler(ctx context.Context, actorID string, limit int) (httptransport.AuditTrailResponse, error) {
	entries, err := h.ListAuditTrail.Execute(ctx, queries.ListAuditTrailQuery{
		ActorID: actorID,
		Limit:   limit,
	})
	if err != nil {
		return httptransport.AuditTrailResponse{}, err
	}
	items := make([]httptransport.AuditEntryDTO, 0, len(entries))
	for _, entry := range entries {
		var payload any
		if len(entry.Payload) > 0 {
			_ = json.Unmarshal(entry.Payload, &payload)
		}
		items = append(items, httptransport.AuditEntryDTO{
			EventID:    entry.EventID,
			EventType:  entry.EventType,
			ActorID:    entry.ActorID,
			Payload:    payload,
			OccurredAt: entry.OccurredAt,
		})
	}
	return httptransport.AuditTrailResponse{
		ParticipantID: actorID,
		Entries:       items,
	}, nil
}

func (h Handler) logFailure(operation string, actorID string, userID string, err error) {
	application.ResolveLogger(h.Logger).Debug("http record transaction rejected",
		"event", "records_http_transaction_rejected",
		"module", "clinical-records/record-access-service",
		"layer", "transport",
		"operation", operation,
		"actor_id", actorID,
		"user_id", userID,
		"error", err.Error(),
	)
}

func toAccessChangeResponse(result commands.AccessChangeResult) httptransport.AccessChangeResponse {
	authorized := result.Authorized
	if authorized == nil {
		authorized = []string{}
	}
	return httptransport.AccessChangeResponse{
		ParticipantID: result.ParticipantID,
		UserID:        result.UserID,
		Authorized:    authorized,
		Changed:       result.Changed,
		EventID:       result.EventID,
	}
}

func toReportDTO(report entities.Report) httptransport.ReportDTO {
	return httptransport.ReportDTO{
		ReportID:  report.ReportID,
		Title:     report.Title,
		Text:      report.Text,
		AuthorID:  report.AuthorID,
		Timestamp: report.Timestamp,
	}
}
