// internal/app/bootstrap/services.go
package bootstrap

import (
	"fmt"

	accessstore "github.com/dalemusser/tenantgate/internal/app/store/access"
	"github.com/dalemusser/tenantgate/internal/app/store/audit"
	"github.com/dalemusser/tenantgate/internal/app/system/access"
	"github.com/dalemusser/tenantgate/internal/app/system/auditlog"
	"github.com/dalemusser/tenantgate/internal/app/system/directory"
	"github.com/dalemusser/tenantgate/internal/app/system/invitations"
	"github.com/dalemusser/tenantgate/internal/app/system/license"
	"github.com/dalemusser/tenantgate/internal/app/system/mailer"
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/dalemusser/tenantgate/internal/app/system/subdomain"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// SiteName appears in outbound email.
const SiteName = "Pic2Data"

// Core is the domain wiring shared by the HTTP server and tenantctl.
type Core struct {
	DB          *mongo.Database
	Directory   *directory.Directory
	License     *license.Validator
	Access      *accessstore.Store
	Resolver    *routing.Resolver
	Links       routing.Links
	Mailer      *mailer.Mailer
	Invitations *invitations.Service
	AuditLog    *auditlog.Logger
}

// Hosts builds the host routing scheme from appCfg.
func Hosts(appCfg AppConfig) subdomain.Resolver {
	return subdomain.Resolver{
		Apex:               appCfg.ApexDomain,
		DevRoot:            appCfg.DevRootName,
		DevSuffix:          appCfg.DevSuffix,
		PreviewSuffix:      appCfg.PreviewSuffix,
		Aliases:            appCfg.SlugAliases,
		PreviewDeployments: appCfg.PreviewDeployments,
	}
}

// NewCore builds the stores and services over db.
func NewCore(appCfg AppConfig, db *mongo.Database, logger *zap.Logger) (*Core, error) {
	mail, err := mailer.New(mailer.Config{
		Provider:       appCfg.MailProvider,
		SMTPHost:       appCfg.MailSMTPHost,
		SMTPPort:       appCfg.MailSMTPPort,
		SMTPUser:       appCfg.MailSMTPUser,
		SMTPPass:       appCfg.MailSMTPPass,
		SendGridAPIKey: appCfg.SendGridAPIKey,
		From:           appCfg.MailFrom,
		FromName:       appCfg.MailFromName,
		SiteName:       SiteName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}

	lv := license.New()
	dir := directory.New(db, appCfg.TrialDays, logger)
	accessStore := accessstore.New(db)
	links := routing.Links{Scheme: appCfg.PublicScheme, Apex: appCfg.ApexDomain}

	resolver := &routing.Resolver{
		Hosts:     Hosts(appCfg),
		Directory: dir,
		License:   lv,
		Access:    &access.Resolver{Access: accessStore, License: lv, Predicate: accessStore},
		Log:       logger,
	}

	svc := invitations.NewForDatabase(db, dir, lv, mail, links, invitations.Config{
		TTL:         appCfg.InvitationTTL,
		FallbackTTL: appCfg.InvitationFallbackTTL,
	}, logger)

	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:   appCfg.AuditLogAuth,
		Admin:  appCfg.AuditLogAdmin,
		Tenant: appCfg.AuditLogTenant,
	})

	return &Core{
		DB:          db,
		Directory:   dir,
		License:     lv,
		Access:      accessStore,
		Resolver:    resolver,
		Links:       links,
		Mailer:      mail,
		Invitations: svc,
		AuditLog:    auditLog,
	}, nil
}
