// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	authcallbackfeature "github.com/dalemusser/tenantgate/internal/app/features/authcallback"
	entryfeature "github.com/dalemusser/tenantgate/internal/app/features/entry"
	healthfeature "github.com/dalemusser/tenantgate/internal/app/features/health"
	invitationsfeature "github.com/dalemusser/tenantgate/internal/app/features/invitations"
	joinfeature "github.com/dalemusser/tenantgate/internal/app/features/join"
	loginfeature "github.com/dalemusser/tenantgate/internal/app/features/login"
	logoutfeature "github.com/dalemusser/tenantgate/internal/app/features/logout"
	"github.com/dalemusser/tenantgate/internal/app/system/auth"
	"github.com/dalemusser/tenantgate/internal/app/system/identity/gotrue"
	"github.com/dalemusser/tenantgate/internal/app/system/metrics"
	"github.com/dalemusser/tenantgate/internal/app/system/pendinginvite"
	"github.com/dalemusser/tenantgate/internal/app/system/ratelimit"
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/dalemusser/tenantgate/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. Every request passes through three
// global middlewares, in order:
//  1. LoadSessionUser puts the signed-in user into the context.
//  2. routing.Middleware resolves the host into a routing mode.
//  3. metrics.Middleware records latency and the resolved mode.
//
// Feature routers decide what each mode means for their paths.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"

	core, err := NewCore(appCfg, deps.MongoDatabase, logger)
	if err != nil {
		logger.Error("core services init failed", zap.Error(err))
		return nil, err
	}

	if appCfg.InvitationRetention > 0 {
		if deps.Background == nil {
			logger.Warn("no background tracker in DB deps; invitation sweep not started")
		} else {
			deps.Background.StartSweep(workers.NewInvitationSweep(core.Invitations, logger, appCfg.InvitationSweepEvery, appCfg.InvitationRetention))
		}
	}

	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionTTL, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	provider, err := gotrue.New(gotrue.Config{
		URL:       appCfg.IdentityURL,
		AnonKey:   appCfg.IdentityAnonKey,
		JWTSecret: appCfg.IdentityJWTSecret,
		Timeout:   appCfg.IdentityTimeout,
	}, logger)
	if err != nil {
		logger.Error("identity provider init failed", zap.Error(err))
		return nil, err
	}

	bridge, err := pendinginvite.New(pendinginvite.Config{
		SessionKey: appCfg.SessionKey,
		Apex:       appCfg.ApexDomain,
		TTL:        appCfg.PendingInviteTTL,
		Secure:     secure,
	}, logger)
	if err != nil {
		logger.Error("pending invitation bridge init failed", zap.Error(err))
		return nil, err
	}

	admins := auth.NewPlatformAdmins(appCfg.PlatformAdminEmails)
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(sessionMgr.LoadSessionUser)
	r.Use(routing.Middleware(core.Resolver, auth.UserID))
	r.Use(m.Middleware)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, appCfg.MongoDatabase, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", m.Handler())

	// Authentication
	loginHandler := loginfeature.NewHandler(sessionMgr, provider, ratelimit.NewLoginLimiter(), core.AuditLog, admins, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, provider, core.AuditLog, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Invitation acceptance and the identity provider round trip
	joinHandler := joinfeature.NewHandler(core.Invitations, provider, bridge, sessionMgr, core.Links, admins, core.AuditLog, m, logger)
	r.Mount("/join", joinfeature.Routes(joinHandler, ratelimit.New(appCfg.JoinRateLimit, time.Minute)))

	callbackHandler := authcallbackfeature.NewHandler(core.Invitations, provider, bridge, sessionMgr, core.Links, admins, core.AuditLog, m, logger)
	r.Mount("/auth/callback", authcallbackfeature.Routes(callbackHandler))

	// Invitation administration
	invitationsHandler := invitationsfeature.NewHandler(core.Invitations, core.AuditLog, m, logger)
	r.Mount("/invitations", invitationsfeature.Routes(invitationsHandler, sessionMgr))

	// Routing entry points: /, /api/routing, /app
	entryHandler := entryfeature.NewHandler(appCfg.LicenseContactEmail, core.AuditLog, logger)
	entryHandler.MountRoutes(r)

	logger.Info("routes mounted",
		zap.String("apex", appCfg.ApexDomain),
		zap.Int("platform_admins", len(appCfg.PlatformAdminEmails)))

	return r, nil
}
