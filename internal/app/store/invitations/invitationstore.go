// internal/app/store/invitations/invitationstore.go
package invitationstore

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
	ErrNotFound       = errors.New("invitation not found")
	ErrNotPending     = errors.New("invitation is not pending")
	ErrDuplicateToken = errors.New("invitation token already exists")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invitations")}
}

// IndexModels lists the unique token index and the pending-list index.
func IndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_invitations_token"),
		},
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_invitations_org_status_created"),
		},
	}
}

// EnsureIndexes creates the indexes from IndexModels.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, IndexModels())
	return err
}

// Create inserts a pending invitation. Token and expiry are set by the caller.
func (s *Store) Create(ctx context.Context, inv models.Invitation) (models.Invitation, error) {
	inv.ID = primitive.NewObjectID()
	inv.Status = models.InvitationPending
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	inv.AcceptedAt = nil
	inv.AcceptedBy = ""
	inv.Organization = nil
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Invitation{}, ErrDuplicateToken
		}
		return models.Invitation{}, err
	}
	return inv, nil
}

// FindPendingByToken returns the invitation only while it is pending.
// Expiry is not checked here.
func (s *Store) FindPendingByToken(ctx context.Context, token string) (models.Invitation, error) {
	return s.findOne(ctx, bson.M{"token": token, "status": models.InvitationPending})
}

// GetByToken returns the invitation in any status.
func (s *Store) GetByToken(ctx context.Context, token string) (models.Invitation, error) {
	return s.findOne(ctx, bson.M{"token": token})
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Invitation, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Invitation, error) {
	var inv models.Invitation
	err := s.c.FindOne(ctx, filter).Decode(&inv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Invitation{}, ErrNotFound
	}
	if err != nil {
		return models.Invitation{}, err
	}
	return inv, nil
}

// MarkAccepted moves the invitation from pending to accepted. The update is
// conditional on status = pending, so among concurrent callers holding the
// same token exactly one succeeds; the others get ErrNotPending.
func (s *Store) MarkAccepted(ctx context.Context, token, userID string, at time.Time) (models.Invitation, error) {
	var inv models.Invitation
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"token": token, "status": models.InvitationPending},
		bson.M{"$set": bson.M{
			"status":      models.InvitationAccepted,
			"accepted_at": at.UTC(),
			"accepted_by": userID,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&inv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Invitation{}, ErrNotPending
	}
	if err != nil {
		return models.Invitation{}, err
	}
	return inv, nil
}

// RevertAcceptance undoes the MarkAccepted call made by userID at acceptedAt.
// It is the compensating step when the access grant that follows acceptance
// fails. An acceptance recorded by any other call is left untouched.
func (s *Store) RevertAcceptance(ctx context.Context, token, userID string, acceptedAt time.Time) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"token":       token,
			"status":      models.InvitationAccepted,
			"accepted_by": userID,
			"accepted_at": acceptedAt.UTC().Truncate(time.Millisecond),
		},
		bson.M{
			"$set":   bson.M{"status": models.InvitationPending},
			"$unset": bson.M{"accepted_at": "", "accepted_by": ""},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete hard-deletes an invitation. Returns the number of documents deleted.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteExpiredPending removes pending invitations whose effective expiry is
// before cutoff. Rows without expires_at expire at created_at + fallback.
// Accepted invitations are never removed.
func (s *Store) DeleteExpiredPending(ctx context.Context, cutoff time.Time, fallback time.Duration) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"status": models.InvitationPending,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$lt": cutoff}},
			bson.M{
				"expires_at": bson.M{"$exists": false},
				"created_at": bson.M{"$lt": cutoff.Add(-fallback)},
			},
		},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListPending returns the organization's pending invitations, newest first.
// Lazily expired invitations are included; callers filter by expiry.
func (s *Store) ListPending(ctx context.Context, orgID primitive.ObjectID) ([]models.Invitation, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"organization_id": orgID, "status": models.InvitationPending},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Invitation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
