// Package directory maps tenant slugs to organizations with their licenses,
// and provisions new tenants.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	accessstore "github.com/dalemusser/tenantgate/internal/app/store/access"
	licensestore "github.com/dalemusser/tenantgate/internal/app/store/licenses"
	organizationstore "github.com/dalemusser/tenantgate/internal/app/store/organizations"
	"github.com/dalemusser/tenantgate/internal/app/system/txn"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultTrialDays is the trial window granted to a new organization.
const DefaultTrialDays = 30

// Directory reads and provisions organizations.
type Directory struct {
	db        *mongo.Database
	orgs      *organizationstore.Store
	licenses  *licensestore.Store
	access    *accessstore.Store
	trialDays int
	log       *zap.Logger
}

// New builds a Directory over db. trialDays <= 0 uses DefaultTrialDays.
func New(db *mongo.Database, trialDays int, logger *zap.Logger) *Directory {
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	return &Directory{
		db:        db,
		orgs:      organizationstore.New(db),
		licenses:  licensestore.New(db),
		access:    accessstore.New(db),
		trialDays: trialDays,
		log:       logger,
	}
}

// Lookup returns the organization for slug with its license attached.
// A missing license leaves License nil, which license validation treats as
// invalid. Returns organizationstore.ErrNotFound for unknown slugs.
func (d *Directory) Lookup(ctx context.Context, slug string) (*models.Organization, error) {
	org, err := d.orgs.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return d.withLicense(ctx, org)
}

// LookupID is Lookup by organization id.
func (d *Directory) LookupID(ctx context.Context, id primitive.ObjectID) (*models.Organization, error) {
	org, err := d.orgs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.withLicense(ctx, org)
}

func (d *Directory) withLicense(ctx context.Context, org models.Organization) (*models.Organization, error) {
	lic, err := d.licenses.GetByOrganization(ctx, org.ID)
	switch {
	case err == nil:
		org.License = &lic
	case errors.Is(err, licensestore.ErrNotFound):
		d.log.Warn("organization has no license", zap.String("slug", org.Slug))
	default:
		return nil, fmt.Errorf("load license for %q: %w", org.Slug, err)
	}
	return &org, nil
}

// CreateInput describes a new tenant.
type CreateInput struct {
	Organization models.Organization
	// OwnerUserID, when set, receives the owner role in the new organization.
	OwnerUserID string
}

// Create inserts the organization, its trial license and the optional owner
// grant in one transaction.
func (d *Directory) Create(ctx context.Context, in CreateInput) (*models.Organization, error) {
	var out models.Organization
	err := txn.Run(ctx, d.db, d.log, func(ctx context.Context) error {
		org, err := d.orgs.Create(ctx, in.Organization)
		if err != nil {
			return err
		}
		lic, err := d.licenses.Create(ctx, licensestore.NewTrial(org.ID, time.Now().UTC(), d.trialDays))
		if err != nil {
			return fmt.Errorf("create trial license: %w", err)
		}
		if in.OwnerUserID != "" {
			if _, _, err := d.access.Grant(ctx, in.OwnerUserID, org.ID, models.RoleOwner, nil); err != nil {
				return fmt.Errorf("grant owner: %w", err)
			}
			org.UserRole = models.RoleOwner
		}
		org.License = &lic
		out = org
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.log.Info("organization created",
		zap.String("slug", out.Slug),
		zap.String("org_id", out.ID.Hex()),
		zap.Int("trial_days", d.trialDays))
	return &out, nil
}

// Retire removes the organization and its license and reserves the slug.
// Access rows and invitations are kept for the audit trail.
func (d *Directory) Retire(ctx context.Context, slug string) error {
	org, err := d.orgs.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return txn.Run(ctx, d.db, d.log, func(ctx context.Context) error {
		if err := d.licenses.DeleteByOrganization(ctx, org.ID); err != nil {
			return err
		}
		return d.orgs.Retire(ctx, org.ID)
	})
}

// List returns organizations ordered by name, without licenses.
func (d *Directory) List(ctx context.Context, limit int64) ([]models.Organization, error) {
	return d.orgs.List(ctx, limit)
}

// Licenses exposes the license store for administrative updates.
func (d *Directory) Licenses() *licensestore.Store { return d.licenses }
