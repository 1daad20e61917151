// internal/domain/models/errors.go
package models

import "errors"

// Error taxonomy shared by the resolution and invitation layers.
var (
	ErrInvalidLicense            = errors.New("organization license does not permit access")
	ErrNoAccess                  = errors.New("user has no active access to this organization")
	ErrInvitationNotFound        = errors.New("invitation not found or expired")
	ErrInvitationAlreadyAccepted = errors.New("invitation already accepted or expired")
	ErrRegistrationFailed        = errors.New("registration failed")
	ErrAcceptTransitionFailed    = errors.New("invitation accepted but access grant failed")
)
