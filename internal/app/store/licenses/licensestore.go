// internal/app/store/licenses/licensestore.go
package licensestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tenantgate/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound      = errors.New("license not found")
	ErrDuplicate     = errors.New("organization already has a license")
	ErrInvalidStatus = errors.New("invalid license status")
)

// TrialType is the license_type of the license created with an organization.
const TrialType = "trial"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("licenses")}
}

// IndexModels enforces one license per organization.
func IndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_licenses_org"),
		},
	}
}

// EnsureIndexes creates the indexes from IndexModels.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, IndexModels())
	return err
}

// NewTrial builds the trial license granted to a new organization.
func NewTrial(orgID primitive.ObjectID, now time.Time, days int) models.License {
	ends := now.AddDate(0, 0, days)
	return models.License{
		OrganizationID: orgID,
		Status:         models.LicenseTrial,
		LicenseType:    TrialType,
		StartsAt:       now,
		TrialEndsAt:    &ends,
	}
}

// Create inserts lic. An organization can hold only one license.
func (s *Store) Create(ctx context.Context, lic models.License) (models.License, error) {
	if !models.IsLicenseStatus(lic.Status) {
		return models.License{}, ErrInvalidStatus
	}
	now := time.Now().UTC()
	lic.ID = primitive.NewObjectID()
	if lic.StartsAt.IsZero() {
		lic.StartsAt = now
	}
	lic.CreatedAt = now
	lic.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, lic); err != nil {
		if wafflemongo.IsDup(err) {
			return models.License{}, ErrDuplicate
		}
		return models.License{}, err
	}
	return lic, nil
}

// GetByOrganization returns the organization's license.
func (s *Store) GetByOrganization(ctx context.Context, orgID primitive.ObjectID) (models.License, error) {
	var lic models.License
	err := s.c.FindOne(ctx, bson.M{"organization_id": orgID}).Decode(&lic)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.License{}, ErrNotFound
	}
	if err != nil {
		return models.License{}, err
	}
	return lic, nil
}

// Update holds an administrative license change. Nil fields are left alone.
type Update struct {
	Status       *string
	LicenseType  *string
	ExpiresAt    *time.Time
	TrialEndsAt  *time.Time
	MaxUsers     *int
	MonthlyPrice *float64
	YearlyPrice  *float64
}

// Update applies u to the organization's license and returns the result.
func (s *Store) Update(ctx context.Context, orgID primitive.ObjectID, u Update) (models.License, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Status != nil {
		if !models.IsLicenseStatus(*u.Status) {
			return models.License{}, ErrInvalidStatus
		}
		set["status"] = *u.Status
	}
	if u.LicenseType != nil {
		set["license_type"] = *u.LicenseType
	}
	if u.ExpiresAt != nil {
		set["expires_at"] = u.ExpiresAt.UTC()
	}
	if u.TrialEndsAt != nil {
		set["trial_ends_at"] = u.TrialEndsAt.UTC()
	}
	if u.MaxUsers != nil {
		set["max_users"] = *u.MaxUsers
	}
	if u.MonthlyPrice != nil {
		set["monthly_price"] = *u.MonthlyPrice
	}
	if u.YearlyPrice != nil {
		set["yearly_price"] = *u.YearlyPrice
	}

	var lic models.License
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"organization_id": orgID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&lic)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.License{}, ErrNotFound
	}
	if err != nil {
		return models.License{}, err
	}
	return lic, nil
}

// DeleteByOrganization removes the organization's license.
func (s *Store) DeleteByOrganization(ctx context.Context, orgID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"organization_id": orgID})
	return err
}
