package errors

import (
	"errors"
	"fmt"
)

var (
	ErrIdentityUnresolved  = errors.New("actor identity could not be resolved")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrNotAuthorized       = errors.New("actor is not authorized for patient record")
	ErrStore               = errors.New("record store failure")
	ErrStaleRecord         = fmt.Errorf("%w: record version changed concurrently", ErrStore)
	ErrEmit                = errors.New("audit event emit failure")
	ErrInvalidUserID       = errors.New("invalid user id")
	ErrSelfAuthorization   = errors.New("participant cannot authorize itself")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
