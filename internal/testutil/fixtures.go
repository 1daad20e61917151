package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	accessstore "github.com/dalemusser/tenantgate/internal/app/store/access"
	invitationstore "github.com/dalemusser/tenantgate/internal/app/store/invitations"
	licensestore "github.com/dalemusser/tenantgate/internal/app/store/licenses"
	organizationstore "github.com/dalemusser/tenantgate/internal/app/store/organizations"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrganization creates an organization with the given slug and no license.
func (f *Fixtures) CreateOrganization(ctx context.Context, slug string) models.Organization {
	f.t.Helper()

	org, err := organizationstore.New(f.db).Create(ctx, models.Organization{
		Slug:         slug,
		Name:         "Org " + slug,
		ContactEmail: "contact@" + slug + ".test",
	})
	if err != nil {
		f.t.Fatalf("CreateOrganization(%s): %v", slug, err)
	}
	return org
}

// CreateLicense attaches a license with the given status to orgID. The
// expiry and trial-end dates are set end from now.
func (f *Fixtures) CreateLicense(ctx context.Context, orgID primitive.ObjectID, status string, end time.Duration) models.License {
	f.t.Helper()

	now := time.Now().UTC()
	until := now.Add(end)
	lic := models.License{
		OrganizationID: orgID,
		Status:         status,
		LicenseType:    licensestore.TrialType,
		StartsAt:       now,
		MaxUsers:       5,
	}
	switch status {
	case models.LicenseTrial:
		lic.TrialEndsAt = &until
	default:
		lic.LicenseType = "standard"
		lic.ExpiresAt = &until
	}
	created, err := licensestore.New(f.db).Create(ctx, lic)
	if err != nil {
		f.t.Fatalf("CreateLicense: %v", err)
	}
	return created
}

// CreateLicensedOrganization creates an organization with a trial license
// that ends in 30 days.
func (f *Fixtures) CreateLicensedOrganization(ctx context.Context, slug string) models.Organization {
	f.t.Helper()

	org := f.CreateOrganization(ctx, slug)
	lic := f.CreateLicense(ctx, org.ID, models.LicenseTrial, 30*24*time.Hour)
	org.License = &lic
	return org
}

// GrantAccess gives a new random user the role in orgID and returns the user id.
func (f *Fixtures) GrantAccess(ctx context.Context, orgID primitive.ObjectID, role string) string {
	f.t.Helper()

	userID := uuid.NewString()
	if _, _, err := accessstore.New(f.db).Grant(ctx, userID, orgID, role, nil); err != nil {
		f.t.Fatalf("GrantAccess: %v", err)
	}
	return userID
}

// ActiveAccess returns the active grant for the pair, or nil.
func (f *Fixtures) ActiveAccess(ctx context.Context, userID string, orgID primitive.ObjectID) (*models.OrganizationAccess, error) {
	return accessstore.New(f.db).ActiveAccess(ctx, userID, orgID)
}

// CreateInvitation creates a pending invitation with the given token that
// expires in ttl. A zero ttl leaves ExpiresAt unset.
func (f *Fixtures) CreateInvitation(ctx context.Context, orgID primitive.ObjectID, email, role, token string, ttl time.Duration) models.Invitation {
	f.t.Helper()

	now := time.Now().UTC()
	inv := models.Invitation{
		OrganizationID: orgID,
		EmailAddress:   email,
		Role:           role,
		Token:          token,
		CreatedAt:      now,
		InvitedBy:      uuid.NewString(),
	}
	if ttl != 0 {
		exp := now.Add(ttl)
		inv.ExpiresAt = &exp
	}
	created, err := invitationstore.New(f.db).Create(ctx, inv)
	if err != nil {
		f.t.Fatalf("CreateInvitation: %v", err)
	}
	return created
}
