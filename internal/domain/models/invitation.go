// internal/domain/models/invitation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invitation statuses. Expiry is computed from the timestamps, never stored.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
)

// Invitation grants one email address the right to join one organization at
// one role. The token moves pending → accepted at most once.
type Invitation struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	EmailAddress   string             `bson:"email_address" json:"email_address"`
	Role           string             `bson:"role" json:"role"`
	Token          string             `bson:"token" json:"-"`
	Status         string             `bson:"status" json:"status"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt      *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	AcceptedAt     *time.Time         `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	AcceptedBy     string             `bson:"accepted_by,omitempty" json:"accepted_by,omitempty"`
	InvitedBy      string             `bson:"invited_by" json:"invited_by"`

	Organization *Organization `bson:"-" json:"organization,omitempty"`
}

// EffectiveExpiry returns the explicit expiry when present, otherwise
// created_at + fallback.
func (i Invitation) EffectiveExpiry(fallback time.Duration) time.Time {
	if i.ExpiresAt != nil && !i.ExpiresAt.IsZero() {
		return *i.ExpiresAt
	}
	return i.CreatedAt.Add(fallback)
}

// PendingInvitation is the client-held context that carries an invitation
// across the identity provider's confirmation redirect.
type PendingInvitation struct {
	Token            string    `json:"token"`
	OrganizationSlug string    `json:"organizationSlug"`
	OrganizationID   string    `json:"organizationId"`
	Role             string    `json:"role"`
	Email            string    `json:"email"`
	Timestamp        time.Time `json:"timestamp"`
}
