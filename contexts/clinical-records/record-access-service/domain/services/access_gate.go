package services

import "medrecords/contexts/clinical-records/record-access-service/domain/entities"

// IsAuthorized reports whether actorID appears in the participant's
// authorization list. A missing list authorizes nobody.
func IsAuthorized(actorID string, participant entities.Participant) bool {
	if actorID == "" || len(participant.Authorized) == 0 {
		return false
	}
	return participant.HasAuthorized(actorID)
}
