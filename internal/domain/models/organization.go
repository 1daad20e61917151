// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is a tenant. Slug maps one-to-one to a subdomain and is never
// reused once assigned.
//
// License and UserRole are request-time annotations filled by the directory
// and the access resolver; they are never persisted on the organization document.
type Organization struct {
	ID               primitive.ObjectID `bson:"_id" json:"id"`
	Slug             string             `bson:"slug" json:"slug"`
	Name             string             `bson:"name" json:"name"`
	NameCI           string             `bson:"name_ci" json:"-"` // ← always stored
	IndustryType     string             `bson:"industry_type" json:"industry_type"`
	SubscriptionPlan string             `bson:"subscription_plan" json:"subscription_plan"`
	ContactEmail     string             `bson:"contact_email" json:"contact_email"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`

	License  *License `bson:"-" json:"license,omitempty"`
	UserRole string   `bson:"-" json:"user_role,omitempty"`
}

// RetiredSlug records a slug that belonged to a removed organization so it
// can never be handed to a different tenant.
type RetiredSlug struct {
	Slug           string             `bson:"_id"`
	OrganizationID primitive.ObjectID `bson:"organization_id"`
	RetiredAt      time.Time          `bson:"retired_at"`
}
