package licensestore_test

import (
	"errors"
	"testing"
	"time"

	licensestore "github.com/dalemusser/tenantgate/internal/app/store/licenses"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"github.com/dalemusser/tenantgate/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newStore(t *testing.T) *licensestore.Store {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := licensestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return store
}

func TestNewTrial(t *testing.T) {
	now := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	lic := licensestore.NewTrial(primitive.NewObjectID(), now, 30)
	if lic.Status != models.LicenseTrial {
		t.Errorf("status = %q", lic.Status)
	}
	if lic.TrialEndsAt == nil || !lic.TrialEndsAt.Equal(now.AddDate(0, 0, 30)) {
		t.Errorf("trial ends at %v", lic.TrialEndsAt)
	}
	if lic.ExpiresAt != nil {
		t.Error("trial license should not carry expires_at")
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orgID := primitive.NewObjectID()
	created, err := store.Create(ctx, licensestore.NewTrial(orgID, time.Now().UTC(), 30))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByOrganization(ctx, orgID)
	if err != nil {
		t.Fatalf("GetByOrganization failed: %v", err)
	}
	if got.ID != created.ID || got.Status != models.LicenseTrial {
		t.Errorf("unexpected license: %+v", got)
	}

	_, err = store.Create(ctx, licensestore.NewTrial(orgID, time.Now().UTC(), 30))
	if !errors.Is(err, licensestore.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestStore_GetByOrganization_NotFound(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByOrganization(ctx, primitive.NewObjectID())
	if !errors.Is(err, licensestore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Update(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orgID := primitive.NewObjectID()
	if _, err := store.Create(ctx, licensestore.NewTrial(orgID, time.Now().UTC(), 30)); err != nil {
		t.Fatal(err)
	}

	status := models.LicenseActive
	expires := time.Now().UTC().AddDate(1, 0, 0).Truncate(time.Millisecond)
	users := 25
	got, err := store.Update(ctx, orgID, licensestore.Update{Status: &status, ExpiresAt: &expires, MaxUsers: &users})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Status != models.LicenseActive || got.MaxUsers != 25 {
		t.Errorf("unexpected license after update: %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Errorf("expires_at = %v, want %v", got.ExpiresAt, expires)
	}

	bad := "grace"
	if _, err := store.Update(ctx, orgID, licensestore.Update{Status: &bad}); !errors.Is(err, licensestore.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := store.Update(ctx, primitive.NewObjectID(), licensestore.Update{Status: &status}); !errors.Is(err, licensestore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
