package entities

import (
	"time"

	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"
)

// Participant is a registry identity that owns an authorization list.
// Patients additionally carry a ClinicalProfile.
type Participant struct {
	ParticipantID string           `json:"participant_id"`
	Authorized    []string         `json:"authorized"`
	Clinical      *ClinicalProfile `json:"clinical,omitempty"`
	Version       int64            `json:"version"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Profile returns the clinical profile when the participant is a patient.
func (p Participant) Profile() (*ClinicalProfile, bool) {
	return p.Clinical, p.Clinical != nil
}

func (p Participant) IsPatient() bool {
	return p.Clinical != nil
}

func (p Participant) HasAuthorized(userID string) bool {
	for _, id := range p.Authorized {
		if id == userID {
			return true
		}
	}
	return false
}

// Grant appends userID to the authorization list. It reports false when the
// identifier is already present.
func (p *Participant) Grant(userID string) (bool, error) {
	if userID == p.ParticipantID {
		return false, domainerrors.ErrSelfAuthorization
	}
	if p.HasAuthorized(userID) {
		return false, nil
	}
	p.Authorized = append(p.Authorized, userID)
	return true, nil
}

// Revoke removes the first occurrence of userID. It reports false when the
// identifier was absent.
func (p *Participant) Revoke(userID string) bool {
	for i, id := range p.Authorized {
		if id != userID {
			continue
		}
		next := make([]string, 0, len(p.Authorized)-1)
		next = append(next, p.Authorized[:i]...)
		next = append(next, p.Authorized[i+1:]...)
		p.Authorized = next
		return true
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (p Participant) Clone() Participant {
	out := p
	out.Authorized = append([]string(nil), p.Authorized...)
	if p.Clinical != nil {
		clinical := p.Clinical.Clone()
		out.Clinical = &clinical
	}
	return out
}
