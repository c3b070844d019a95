package valueobjects

import (
	"strings"

	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
)

// ParticipantID is a trimmed, non-empty participant identifier.
type ParticipantID string

func NewParticipantID(v string) (ParticipantID, error) {
	value := strings.TrimSpace(v)
	if value == "" {
		return "", domainerrors.ErrInvalidUserID
	}
	return ParticipantID(value), nil
}

func (id ParticipantID) String() string {
	return string(id)
}
