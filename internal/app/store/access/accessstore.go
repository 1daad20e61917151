// internal/app/store/access/accessstore.go
package accessstore

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
	ErrNotFound    = errors.New("access grant not found")
	ErrInvalidRole = errors.New("invalid organization role")
)

type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organization_access"), now: time.Now}
}

// IndexModels enforces at most one active grant per (user, organization).
// Inactive rows are kept for history and are not covered by the unique index.
func IndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "organization_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_access_active_user_org").
				SetPartialFilterExpression(bson.M{"status": models.AccessActive}),
		},
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_access_org_status"),
		},
	}
}

// EnsureIndexes creates the indexes from IndexModels.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, IndexModels())
	return err
}

// ActiveAccess returns the active grant for the pair, or (nil, nil).
func (s *Store) ActiveAccess(ctx context.Context, userID string, orgID primitive.ObjectID) (*models.OrganizationAccess, error) {
	var row models.OrganizationAccess
	err := s.c.FindOne(ctx, bson.M{
		"user_id":         userID,
		"organization_id": orgID,
		"status":          models.AccessActive,
	}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Grant gives userID an active role in orgID. If an active grant already
// exists it is returned unchanged and created is false.
func (s *Store) Grant(ctx context.Context, userID string, orgID primitive.ObjectID, role string, invitationID *primitive.ObjectID) (row models.OrganizationAccess, created bool, err error) {
	if !models.IsRole(role) {
		return models.OrganizationAccess{}, false, ErrInvalidRole
	}
	if existing, err := s.ActiveAccess(ctx, userID, orgID); err != nil {
		return models.OrganizationAccess{}, false, err
	} else if existing != nil {
		return *existing, false, nil
	}

	now := s.now().UTC()
	row = models.OrganizationAccess{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		Status:         models.AccessActive,
		InvitationID:   invitationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.c.InsertOne(ctx, row); err != nil {
		if wafflemongo.IsDup(err) {
			// lost a race with a concurrent grant
			existing, ferr := s.ActiveAccess(ctx, userID, orgID)
			if ferr == nil && existing != nil {
				return *existing, false, nil
			}
		}
		return models.OrganizationAccess{}, false, err
	}
	return row, true, nil
}

// Deactivate soft-deletes the active grant. Rows are never hard-deleted.
func (s *Store) Deactivate(ctx context.Context, userID string, orgID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "organization_id": orgID, "status": models.AccessActive},
		bson.M{"$set": bson.M{"status": models.AccessInactive, "updated_at": s.now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForUser returns the user's active grants, newest first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]models.OrganizationAccess, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"user_id": userID, "status": models.AccessActive},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.OrganizationAccess
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CanLogin answers "active grant AND valid license" in one aggregation.
// The license rule matches license.Validator: active while now <= expires_at,
// trial while now <= trial_ends_at, everything else denied.
func (s *Store) CanLogin(ctx context.Context, userID string, orgID primitive.ObjectID) (bool, error) {
	now := s.now().UTC()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user_id":         userID,
			"organization_id": orgID,
			"status":          models.AccessActive,
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "licenses",
			"localField":   "organization_id",
			"foreignField": "organization_id",
			"as":           "license",
		}}},
		{{Key: "$unwind", Value: "$license"}},
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"license.status": models.LicenseActive, "license.expires_at": bson.M{"$gte": now}},
			bson.M{"license.status": models.LicenseTrial, "license.trial_ends_at": bson.M{"$gte": now}},
		}}}},
		{{Key: "$limit", Value: 1}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return false, err
	}
	defer cur.Close(ctx)
	ok := cur.Next(ctx)
	return ok, cur.Err()
}
