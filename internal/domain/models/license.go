// internal/domain/models/license.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// License statuses.
const (
	LicenseTrial     = "trial"
	LicenseActive    = "active"
	LicenseExpired   = "expired"
	LicenseSuspended = "suspended"
)

// License belongs to exactly one organization (unique organization_id).
// A trial license is created together with the organization; afterwards it is
// only changed by platform administrators.
type License struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	Status         string             `bson:"status" json:"status"`
	LicenseType    string             `bson:"license_type" json:"license_type"`
	StartsAt       time.Time          `bson:"starts_at" json:"starts_at"`
	ExpiresAt      *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	TrialEndsAt    *time.Time         `bson:"trial_ends_at,omitempty" json:"trial_ends_at,omitempty"`
	MaxUsers       int                `bson:"max_users" json:"max_users"`
	MonthlyPrice   float64            `bson:"monthly_price" json:"monthly_price"`
	YearlyPrice    float64            `bson:"yearly_price" json:"yearly_price"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// IsLicenseStatus reports whether s is one of the four known statuses.
func IsLicenseStatus(s string) bool {
	switch s {
	case LicenseTrial, LicenseActive, LicenseExpired, LicenseSuspended:
		return true
	}
	return false
}
