package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medrecords/contexts/clinical-records/record-access-service/domain/entities"
	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
	"medrecords/contexts/clinical-records/record-access-service/ports"
)

// ResolveActor maps the caller to a participant. A blank caller never reaches
// the resolver.
func ResolveActor(ctx context.Context, resolver ports.IdentityResolver, actorID string) (entities.Participant, error) {
	value := strings.TrimSpace(actorID)
	if value == "" || resolver == nil {
		return entities.Participant{}, domainerrors.ErrIdentityUnresolved
	}
	actor, err := resolver.ResolveActor(ctx, value)
	if err != nil {
		if errors.Is(err, domainerrors.ErrIdentityUnresolved) {
			return entities.Participant{}, err
		}
		return entities.Participant{}, AsStoreError(err)
	}
	return actor, nil
}

// LoadPatient fetches a patient record, keeping ErrPatientNotFound distinct
// from collaborator failures.
func LoadPatient(ctx context.Context, repository ports.Repository, patientID string) (entities.Participant, error) {
	patient, err := repository.GetPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrPatientNotFound) {
			return entities.Participant{}, err
		}
		return entities.Participant{}, AsStoreError(err)
	}
	if !patient.IsPatient() {
		return entities.Participant{}, domainerrors.ErrPatientNotFound
	}
	return patient, nil
}

// AsStoreError tags collaborator failures that are neither store, emit nor
// idempotency errors as store errors.
func AsStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domainerrors.ErrStore) ||
		errors.Is(err, domainerrors.ErrEmit) ||
		errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		return err
	}
	return fmt.Errorf("%w: %w", domainerrors.ErrStore, err)
}
