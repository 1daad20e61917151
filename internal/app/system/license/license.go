// Package license decides whether an organization's license permits access.
package license

import (
	"time"

	"github.com/dalemusser/tenantgate/internal/domain/models"
)

// Reason explains why a license is not valid. ReasonNone means it is valid.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonMissing      Reason = "missing"
	ReasonSuspended    Reason = "suspended"
	ReasonExpired      Reason = "expired"
	ReasonActiveLapsed Reason = "active_lapsed"
	ReasonTrialEnded   Reason = "trial_ended"
	ReasonUnknown      Reason = "unknown_status"
)

// Validator evaluates licenses against a clock. The zero value uses time.Now.
type Validator struct {
	Now func() time.Time
}

// New returns a Validator using the wall clock.
func New() *Validator {
	return &Validator{Now: time.Now}
}

func (v *Validator) now() time.Time {
	if v == nil || v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

// IsValid reports whether lic grants access at the current instant.
//
// suspended and expired are never valid. active is valid while now <= expires_at,
// trial while now <= trial_ends_at. A nil license, a missing end date, or an
// unknown status is invalid.
func (v *Validator) IsValid(lic *models.License) bool {
	return v.Describe(lic) == ReasonNone
}

// Describe returns why lic is not valid, or ReasonNone when it is.
func (v *Validator) Describe(lic *models.License) Reason {
	if lic == nil {
		return ReasonMissing
	}
	now := v.now()
	switch lic.Status {
	case models.LicenseSuspended:
		return ReasonSuspended
	case models.LicenseExpired:
		return ReasonExpired
	case models.LicenseActive:
		if lic.ExpiresAt == nil || now.After(*lic.ExpiresAt) {
			return ReasonActiveLapsed
		}
		return ReasonNone
	case models.LicenseTrial:
		if lic.TrialEndsAt == nil || now.After(*lic.TrialEndsAt) {
			return ReasonTrialEnded
		}
		return ReasonNone
	default:
		return ReasonUnknown
	}
}

// Message returns a user-facing explanation for r.
func (r Reason) Message() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonMissing:
		return "This organization has no license on file."
	case ReasonSuspended:
		return "This organization's license has been suspended."
	case ReasonExpired, ReasonActiveLapsed:
		return "This organization's license has expired."
	case ReasonTrialEnded:
		return "This organization's trial period has ended."
	default:
		return "This organization's license is not valid."
	}
}
