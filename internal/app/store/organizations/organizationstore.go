// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/dalemusser/tenantgate/internal/app/system/normalize"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound      = errors.New("organization not found")
	ErrDuplicateSlug = errors.New("an organization with this slug already exists")
	ErrSlugRetired   = errors.New("this slug belonged to a removed organization and cannot be reused")
	ErrInvalidSlug   = errors.New("slug must be 1-63 lowercase letters, digits or hyphens and may not start or end with a hyphen")
)

var slugRE = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidSlug reports whether s can be used as a tenant subdomain label.
func ValidSlug(s string) bool {
	return slugRE.MatchString(s)
}

type Store struct {
	c       *mongo.Collection
	retired *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:       db.Collection("organizations"),
		retired: db.Collection("retired_slugs"),
	}
}

// IndexModels lists the organizations collection indexes.
func IndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_orgs_slug"),
		},
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_orgs_nameci"),
		},
	}
}

// EnsureIndexes creates the indexes from IndexModels.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, IndexModels())
	return err
}

// Create inserts org. The slug is normalized and must be valid, unused and
// never retired.
func (s *Store) Create(ctx context.Context, org models.Organization) (models.Organization, error) {
	org.Slug = normalize.Slug(org.Slug)
	if !ValidSlug(org.Slug) {
		return models.Organization{}, ErrInvalidSlug
	}
	retired, err := s.IsRetired(ctx, org.Slug)
	if err != nil {
		return models.Organization{}, err
	}
	if retired {
		return models.Organization{}, ErrSlugRetired
	}

	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.NameCI = text.Fold(org.Name)
	org.ContactEmail = normalize.Email(org.ContactEmail)
	org.CreatedAt = now
	org.UpdatedAt = now
	org.License = nil
	org.UserRole = ""
	if _, err := s.c.InsertOne(ctx, org); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Organization{}, ErrDuplicateSlug
		}
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&org)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Organization{}, ErrNotFound
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// GetBySlug looks up an organization by its (normalized) slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"slug": normalize.Slug(slug)}).Decode(&org)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Organization{}, ErrNotFound
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// UpdateProfile changes the mutable descriptive fields. Slug and ID are
// immutable.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, org models.Organization) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if org.Name != "" {
		set["name"] = org.Name
		set["name_ci"] = text.Fold(org.Name)
	}
	if org.IndustryType != "" {
		set["industry_type"] = org.IndustryType
	}
	if org.SubscriptionPlan != "" {
		set["subscription_plan"] = org.SubscriptionPlan
	}
	if org.ContactEmail != "" {
		set["contact_email"] = normalize.Email(org.ContactEmail)
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Retire deletes the organization and reserves its slug forever. Run it in a
// transaction together with any cleanup of dependent rows.
func (s *Store) Retire(ctx context.Context, id primitive.ObjectID) error {
	org, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.retired.InsertOne(ctx, models.RetiredSlug{
		Slug:           org.Slug,
		OrganizationID: org.ID,
		RetiredAt:      time.Now().UTC(),
	})
	if err != nil && !wafflemongo.IsDup(err) {
		return err
	}
	_, err = s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// IsRetired reports whether slug was used by a removed organization.
func (s *Store) IsRetired(ctx context.Context, slug string) (bool, error) {
	err := s.retired.FindOne(ctx, bson.M{"_id": normalize.Slug(slug)}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns organizations ordered by name.
func (s *Store) List(ctx context.Context, limit int64) ([]models.Organization, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var orgs []models.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}
