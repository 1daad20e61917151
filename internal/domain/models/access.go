// internal/domain/models/access.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization roles.
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Access row statuses. Removal flips status to inactive; rows are never
// hard-deleted so the grant history stays auditable.
const (
	AccessActive   = "active"
	AccessInactive = "inactive"
)

// OrganizationAccess grants a user a role in one organization.
// At most one active row exists per (user_id, organization_id).
//
// UserID is the identity provider's subject (a UUID string), not a Mongo id.
type OrganizationAccess struct {
	ID             primitive.ObjectID  `bson:"_id" json:"id"`
	UserID         string              `bson:"user_id" json:"user_id"`
	OrganizationID primitive.ObjectID  `bson:"organization_id" json:"organization_id"`
	Role           string              `bson:"role" json:"role"`
	Status         string              `bson:"status" json:"status"`
	InvitationID   *primitive.ObjectID `bson:"invitation_id,omitempty" json:"invitation_id,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updated_at"`
}

// IsRole reports whether r is a known organization role.
func IsRole(r string) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleUser:
		return true
	}
	return false
}
