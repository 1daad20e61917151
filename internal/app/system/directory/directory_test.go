package directory_test

import (
	"errors"
	"testing"
	"time"

	organizationstore "github.com/dalemusser/tenantgate/internal/app/store/organizations"
	"github.com/dalemusser/tenantgate/internal/app/system/directory"
	"github.com/dalemusser/tenantgate/internal/app/system/indexes"
	"github.com/dalemusser/tenantgate/internal/app/system/license"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"github.com/dalemusser/tenantgate/internal/testutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestDirectory_CreateAndLookup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	dir := directory.New(db, 30, zap.NewNop())
	owner := uuid.NewString()
	created, err := dir.Create(ctx, directory.CreateInput{
		Organization: models.Organization{Slug: "acme", Name: "Acme"},
		OwnerUserID:  owner,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.License == nil || created.License.Status != models.LicenseTrial {
		t.Fatalf("expected trial license, got %+v", created.License)
	}
	wantEnd := created.CreatedAt.AddDate(0, 0, 30)
	if d := created.License.TrialEndsAt.Sub(wantEnd); d > time.Minute || d < -time.Minute {
		t.Errorf("trial ends %v, want about %v", created.License.TrialEndsAt, wantEnd)
	}

	org, err := dir.Lookup(ctx, "acme")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if org.License == nil || !license.New().IsValid(org.License) {
		t.Errorf("fresh trial should be valid: %+v", org.License)
	}

	row, err := testutil.NewFixtures(t, db).ActiveAccess(ctx, owner, org.ID)
	if err != nil || row == nil || row.Role != models.RoleOwner {
		t.Errorf("owner grant missing: row=%+v err=%v", row, err)
	}
}

func TestDirectory_LookupUnknown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := directory.New(db, 0, zap.NewNop()).Lookup(ctx, "nobody")
	if !errors.Is(err, organizationstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDirectory_CreateDuplicateRollsBack(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	dir := directory.New(db, 30, zap.NewNop())

	if _, err := dir.Create(ctx, directory.CreateInput{Organization: models.Organization{Slug: "acme", Name: "Acme"}}); err != nil {
		t.Fatal(err)
	}
	_, err := dir.Create(ctx, directory.CreateInput{Organization: models.Organization{Slug: "acme", Name: "Other"}})
	if !errors.Is(err, organizationstore.ErrDuplicateSlug) {
		t.Errorf("expected ErrDuplicateSlug, got %v", err)
	}
}

func TestDirectory_Retire(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	dir := directory.New(db, 30, zap.NewNop())

	if _, err := dir.Create(ctx, directory.CreateInput{Organization: models.Organization{Slug: "globex", Name: "Globex"}}); err != nil {
		t.Fatal(err)
	}
	if err := dir.Retire(ctx, "globex"); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if _, err := dir.Lookup(ctx, "globex"); !errors.Is(err, organizationstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound after retire, got %v", err)
	}
	_, err := dir.Create(ctx, directory.CreateInput{Organization: models.Organization{Slug: "globex", Name: "Globex 2"}})
	if !errors.Is(err, organizationstore.ErrSlugRetired) {
		t.Errorf("expected ErrSlugRetired, got %v", err)
	}
}

func TestDirectory_LookupID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	org := fx.CreateOrganization(ctx, "initech")
	dir := directory.New(db, 30, zap.NewNop())

	got, err := dir.LookupID(ctx, org.ID)
	if err != nil {
		t.Fatalf("LookupID: %v", err)
	}
	if got.Slug != "initech" {
		t.Errorf("slug = %q", got.Slug)
	}
	if got.License != nil {
		t.Errorf("organization without license should have nil License, got %+v", got.License)
	}

	fx.CreateLicense(ctx, org.ID, models.LicenseActive, time.Hour)
	got, err = dir.LookupID(ctx, org.ID)
	if err != nil || got.License == nil || got.License.Status != models.LicenseActive {
		t.Errorf("expected active license attached: org=%+v err=%v", got, err)
	}
}
