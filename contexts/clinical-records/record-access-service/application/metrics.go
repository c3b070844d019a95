package application

import (
	"errors"

	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

const OutcomeNoop = "noop"

// Outcome maps a transaction error to a low-cardinality metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domainerrors.ErrIdentityUnresolved):
		return "identity_error"
	case errors.Is(err, domainerrors.ErrPatientNotFound):
		return "not_found"
	case errors.Is(err, domainerrors.ErrNotAuthorized):
		return "unauthorized"
	case errors.Is(err, domainerrors.ErrStaleRecord):
		return "stale"
	case errors.Is(err, domainerrors.ErrStore):
		return "store_error"
	case errors.Is(err, domainerrors.ErrEmit):
		return "emit_error"
	default:
		return "rejected"
	}
}

func ObserveTransaction(metrics ports.Metrics, operation string, outcome string) {
	if metrics == nil {
		return
	}
	metrics.ObserveTransaction(operation, outcome)
}

func ObserveRelay(metrics ports.Metrics, eventType string, outcome string) {
	if metrics == nil {
		return
	}
	metrics.ObserveRelay(eventType, outcome)
}
