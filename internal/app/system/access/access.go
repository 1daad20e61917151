// Package access decides whether a user may enter an organization and with
// which role.
//
// CanLogin and ResolveRole are kept separate: CanLogin gates entry and lets
// callers tell a license denial from a missing grant, ResolveRole returns the
// role (or "" for either failure). Callers that need the reason call CanLogin
// (or Denial) first.
package access

import (
	"context"
	"fmt"

	"github.com/dalemusser/tenantgate/internal/app/system/license"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Finder loads the active access row for a user in an organization.
// It returns (nil, nil) when no active row exists.
type Finder interface {
	ActiveAccess(ctx context.Context, userID string, orgID primitive.ObjectID) (*models.OrganizationAccess, error)
}

// LoginPredicate is a server-side evaluation of "active row AND valid license",
// answered by the data store in one round trip.
type LoginPredicate interface {
	CanLogin(ctx context.Context, userID string, orgID primitive.ObjectID) (bool, error)
}

// Resolver composes the access rows with license validation.
type Resolver struct {
	Access    Finder
	License   *license.Validator
	Predicate LoginPredicate // optional
}

// CanLogin reports whether userID holds an active grant in org and org's
// license is valid.
func (res *Resolver) CanLogin(ctx context.Context, userID string, org *models.Organization) (bool, error) {
	if org == nil || userID == "" {
		return false, nil
	}
	if res.Predicate != nil {
		ok, err := res.Predicate.CanLogin(ctx, userID, org.ID)
		if err != nil {
			return false, fmt.Errorf("access: login predicate: %w", err)
		}
		return ok, nil
	}
	row, err := res.Access.ActiveAccess(ctx, userID, org.ID)
	if err != nil {
		return false, fmt.Errorf("access: load grant: %w", err)
	}
	return row != nil && res.License.IsValid(org.License), nil
}

// ResolveRole returns the user's role in org, or "" when there is no active
// grant or the license is not valid.
func (res *Resolver) ResolveRole(ctx context.Context, userID string, org *models.Organization) (string, error) {
	if org == nil || userID == "" {
		return "", nil
	}
	row, err := res.Access.ActiveAccess(ctx, userID, org.ID)
	if err != nil {
		return "", fmt.Errorf("access: load grant: %w", err)
	}
	if row == nil {
		return "", nil
	}
	if !res.License.IsValid(org.License) {
		return "", nil
	}
	return row.Role, nil
}

// Denial returns nil when CanLogin passes, models.ErrInvalidLicense when the
// license forbids entry, and models.ErrNoAccess otherwise. License is checked
// before the grant so a lapsed tenant is reported as such to every user.
func (res *Resolver) Denial(ctx context.Context, userID string, org *models.Organization) error {
	ok, err := res.CanLogin(ctx, userID, org)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if org == nil || !res.License.IsValid(org.License) {
		return models.ErrInvalidLicense
	}
	return models.ErrNoAccess
}
