// internal/app/system/validators/validators.go
package validators

// user_id on access rows is the identity provider's UUID string, not an
// ObjectID; the schemas below reflect that.

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/tenantgate/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Tenancy
	ensure("organizations", orgsSchema())
	ensure("licenses", licensesSchema())

	// Access and invitations
	ensure("organization_access", accessSchema())
	ensure("invitations", invitationsSchema())

	// These don't strictly need validators; we still ensure the collections exist.
	ensure("retired_slugs", nil)
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func enum(values ...string) bson.A {
	out := make(bson.A, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func orgsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"slug", "name", "name_ci", "created_at"},
			"properties": bson.M{
				"slug":          bson.M{"bsonType": "string", "pattern": "^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$"},
				"name":          bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":       bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"contact_email": bson.M{"bsonType": "string"},
				"created_at":    bson.M{"bsonType": "date"},
				"updated_at":    bson.M{"bsonType": "date"},
			},
		},
	}
}

func licensesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"organization_id", "status", "starts_at"},
			"properties": bson.M{
				"organization_id": bson.M{"bsonType": "objectId"},
				"status":          bson.M{"enum": enum(models.LicenseTrial, models.LicenseActive, models.LicenseExpired, models.LicenseSuspended)},
				"license_type":    bson.M{"bsonType": "string"},
				"starts_at":       bson.M{"bsonType": "date"},
				"expires_at":      bson.M{"bsonType": bson.A{"date", "null"}},
				"trial_ends_at":   bson.M{"bsonType": bson.A{"date", "null"}},
				"max_users":       bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"monthly_price":   bson.M{"bsonType": bson.A{"double", "int", "long", "decimal"}},
				"yearly_price":    bson.M{"bsonType": bson.A{"double", "int", "long", "decimal"}},
			},
		},
	}
}

func accessSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "organization_id", "role", "status", "created_at"},
			"properties": bson.M{
				"user_id":         bson.M{"bsonType": "string", "minLength": 1},
				"organization_id": bson.M{"bsonType": "objectId"},
				"role":            bson.M{"enum": enum(models.RoleOwner, models.RoleAdmin, models.RoleUser)},
				"status":          bson.M{"enum": enum(models.AccessActive, models.AccessInactive)},
				"invitation_id":   bson.M{"bsonType": bson.A{"objectId", "null"}},
				"created_at":      bson.M{"bsonType": "date"},
				"updated_at":      bson.M{"bsonType": "date"},
			},
		},
	}
}

func invitationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"organization_id", "email_address", "role", "token", "status", "created_at"},
			"properties": bson.M{
				"organization_id": bson.M{"bsonType": "objectId"},
				"email_address":   bson.M{"bsonType": "string", "minLength": 3},
				// owner is never invited
				"role":        bson.M{"enum": enum(models.RoleAdmin, models.RoleUser)},
				"token":       bson.M{"bsonType": "string", "minLength": 1},
				"status":      bson.M{"enum": enum(models.InvitationPending, models.InvitationAccepted)},
				"created_at":  bson.M{"bsonType": "date"},
				"expires_at":  bson.M{"bsonType": bson.A{"date", "null"}},
				"accepted_at": bson.M{"bsonType": bson.A{"date", "null"}},
				"accepted_by": bson.M{"bsonType": "string"},
				"invited_by":  bson.M{"bsonType": "string"},
			},
		},
	}
}
