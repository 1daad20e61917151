// internal/app/system/auditlog/logger.go
package auditlog

// Terminology: User Identifiers
//   - UserID / userID / user_id: the identity provider's subject (UUID string)
//   - Email: the address the user signs in with

import (
	"context"
	"net/http"

	"github.com/dalemusser/tenantgate/internal/app/store/audit"
	"github.com/dalemusser/tenantgate/internal/app/system/ratelimit"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
// Each value is "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only) or "off".
type Config struct {
	Auth   string // sign-in, sign-up, logout
	Admin  string // tenant, license, access and invitation administration
	Tenant string // invitation acceptance and routing denials
}

// Logger records audit events to MongoDB and/or zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.OrganizationID != nil {
		fields = append(fields, zap.String("organization_id", event.OrganizationID.Hex()))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event according to the category's setting.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	case audit.CategoryTenant:
		setting = l.config.Tenant
	default:
		setting = "all"
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

// fromRequest fills the request-derived fields. r may be nil for events raised
// outside HTTP (the admin CLI).
func fromRequest(r *http.Request, e audit.Event) audit.Event {
	if r == nil {
		e.IP = "cli"
		return e
	}
	e.IP = ratelimit.ClientIP(r)
	e.UserAgent = r.UserAgent()
	e.RequestID = middleware.GetReqID(r.Context())
	return e
}

func orgPtr(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, email string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    userID,
		Success:   true,
		Details:   map[string]string{"email": email},
	}))
}

// LoginFailed logs a rejected sign-in.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, email, reason string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailed,
		FailureReason: reason,
		Details:       map[string]string{"email": email},
	}))
}

// RateLimited logs a request blocked by a rate limiter.
func (l *Logger) RateLimited(ctx context.Context, r *http.Request, email, limitType string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedRateLimit,
		FailureReason: "rate limit exceeded",
		Details:       map[string]string{"email": email, "limit_type": limitType},
	}))
}

// Logout logs a sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		Success:   true,
	}))
}

// SignupStarted logs a registration submitted for an invitation.
func (l *Logger) SignupStarted(ctx context.Context, r *http.Request, userID, email string, orgID primitive.ObjectID) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      audit.EventSignupStarted,
		UserID:         userID,
		OrganizationID: orgPtr(orgID),
		Success:        true,
		Details:        map[string]string{"email": email},
	}))
}

// SignupFailed logs a registration the identity provider rejected.
func (l *Logger) SignupFailed(ctx context.Context, r *http.Request, email string, orgID primitive.ObjectID, reason string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      audit.EventSignupFailed,
		OrganizationID: orgPtr(orgID),
		FailureReason:  reason,
		Details:        map[string]string{"email": email},
	}))
}

// IdentityConfirmed logs arrival at the confirmation callback with a session.
func (l *Logger) IdentityConfirmed(ctx context.Context, r *http.Request, userID, email string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventIdentityConfirmed,
		UserID:    userID,
		Success:   true,
		Details:   map[string]string{"email": email},
	}))
}

// --- Admin Events ---

// OrgCreated logs tenant provisioning.
func (l *Logger) OrgCreated(ctx context.Context, r *http.Request, actorID string, org models.Organization) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventOrgCreated,
		ActorID:        actorID,
		OrganizationID: orgPtr(org.ID),
		Success:        true,
		Details:        map[string]string{"slug": org.Slug},
	}))
}

// OrgRetired logs tenant removal.
func (l *Logger) OrgRetired(ctx context.Context, r *http.Request, actorID, slug string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventOrgRetired,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"slug": slug},
	}))
}

// LicenseUpdated logs an administrative license change.
func (l *Logger) LicenseUpdated(ctx context.Context, r *http.Request, actorID string, lic models.License) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventLicenseUpdated,
		ActorID:        actorID,
		OrganizationID: orgPtr(lic.OrganizationID),
		Success:        true,
		Details:        map[string]string{"status": lic.Status},
	}))
}

// AccessRevoked logs a soft-deleted grant.
func (l *Logger) AccessRevoked(ctx context.Context, r *http.Request, actorID, userID string, orgID primitive.ObjectID) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventAccessRevoked,
		ActorID:        actorID,
		UserID:         userID,
		OrganizationID: orgPtr(orgID),
		Success:        true,
	}))
}

// InvitationCreated logs a new invitation. The token is never logged.
func (l *Logger) InvitationCreated(ctx context.Context, r *http.Request, actorID string, inv models.Invitation) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventInvitationCreated,
		ActorID:        actorID,
		OrganizationID: orgPtr(inv.OrganizationID),
		Success:        true,
		Details: map[string]string{
			"invitation_id": inv.ID.Hex(),
			"email":         inv.EmailAddress,
			"role":          inv.Role,
		},
	}))
}

// InvitationDeleted logs a hard-deleted invitation.
func (l *Logger) InvitationDeleted(ctx context.Context, r *http.Request, actorID string, invID primitive.ObjectID) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventInvitationDeleted,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"invitation_id": invID.Hex()},
	}))
}

// InvitationRegranted logs a repaired acceptance.
func (l *Logger) InvitationRegranted(ctx context.Context, r *http.Request, actorID string, inv models.Invitation) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventInvitationRegrant,
		ActorID:        actorID,
		UserID:         inv.AcceptedBy,
		OrganizationID: orgPtr(inv.OrganizationID),
		Success:        true,
		Details:        map[string]string{"invitation_id": inv.ID.Hex()},
	}))
}

// --- Tenant Events ---

// InvitationAccepted logs a redeemed invitation.
func (l *Logger) InvitationAccepted(ctx context.Context, r *http.Request, userID string, inv models.Invitation) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:       audit.CategoryTenant,
		EventType:      audit.EventInvitationAccepted,
		UserID:         userID,
		OrganizationID: orgPtr(inv.OrganizationID),
		Success:        true,
		Details: map[string]string{
			"invitation_id": inv.ID.Hex(),
			"role":          inv.Role,
		},
	}))
}

// InvitationAcceptFailed logs a failed redemption.
func (l *Logger) InvitationAcceptFailed(ctx context.Context, r *http.Request, userID, orgID, reason string) {
	e := audit.Event{
		Category:      audit.CategoryTenant,
		EventType:     audit.EventInvitationAcceptFailed,
		UserID:        userID,
		FailureReason: reason,
	}
	if id, err := primitive.ObjectIDFromHex(orgID); err == nil {
		e.OrganizationID = &id
	}
	l.Log(ctx, fromRequest(r, e))
}

// InvitationEmailFailed logs an invitation whose email could not be sent.
func (l *Logger) InvitationEmailFailed(ctx context.Context, r *http.Request, actorID string, inv models.Invitation, reason string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:       audit.CategoryTenant,
		EventType:      audit.EventInvitationEmailFailed,
		ActorID:        actorID,
		OrganizationID: orgPtr(inv.OrganizationID),
		FailureReason:  reason,
		Details:        map[string]string{"invitation_id": inv.ID.Hex()},
	}))
}

// RoutingDenied logs a signed-in user stopped at LICENSE_ERROR or ACCESS_DENIED.
func (l *Logger) RoutingDenied(ctx context.Context, r *http.Request, userID string, orgID primitive.ObjectID, mode, reason string) {
	l.Log(ctx, fromRequest(r, audit.Event{
		Category:       audit.CategoryTenant,
		EventType:      audit.EventRoutingDenied,
		UserID:         userID,
		OrganizationID: orgPtr(orgID),
		FailureReason:  reason,
		Details:        map[string]string{"mode": mode},
	}))
}
