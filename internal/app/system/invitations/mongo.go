package invitations

import (
	accessstore "github.com/dalemusser/tenantgate/internal/app/store/access"
	invitationstore "github.com/dalemusser/tenantgate/internal/app/store/invitations"
	"github.com/dalemusser/tenantgate/internal/app/system/access"
	"github.com/dalemusser/tenantgate/internal/app/system/license"
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/dalemusser/tenantgate/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// NewForDatabase builds a Service over the invitation and access collections
// in db. Accept runs inside a Mongo transaction where the deployment allows
// it. notifier may be nil.
func NewForDatabase(db *mongo.Database, dir Directory, lv *license.Validator, notifier Notifier, links routing.Links, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	grants := accessstore.New(db)
	return New(Deps{
		Store:     invitationstore.New(db),
		Access:    grants,
		Directory: dir,
		Resolver:  &access.Resolver{Access: grants, License: lv},
		License:   lv,
		Tx:        txn.Runner{DB: db, Log: logger},
		Notifier:  notifier,
		Links:     links,
	}, cfg, logger)
}
