// internal/app/features/authcallback/handler.go
package authcallback

import (
	"context"
	"net/http"

	"github.com/dalemusser/tenantgate/internal/app/system/auditlog"
	"github.com/dalemusser/tenantgate/internal/app/system/auth"
	"github.com/dalemusser/tenantgate/internal/app/system/identity"
	"github.com/dalemusser/tenantgate/internal/app/system/invitations"
	"github.com/dalemusser/tenantgate/internal/app/system/metrics"
	"github.com/dalemusser/tenantgate/internal/app/system/normalize"
	"github.com/dalemusser/tenantgate/internal/app/system/pendinginvite"
	"github.com/dalemusser/tenantgate/internal/app/system/respond"
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/dalemusser/tenantgate/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// DefaultLanding is where a confirmed user goes when no invitation was
// carried across the redirect.
const DefaultLanding = "/app"

// Handler consumes the identity provider's confirmation redirect.
type Handler struct {
	Log            *zap.Logger
	Invitations    *invitations.Service
	Identity       identity.Provider
	Bridge         *pendinginvite.Bridge
	SessionMgr     *auth.SessionManager
	Links          routing.Links
	PlatformAdmins auth.PlatformAdmins
	AuditLog       *auditlog.Logger
	Metrics        *metrics.Metrics
}

func NewHandler(
	svc *invitations.Service,
	provider identity.Provider,
	bridge *pendinginvite.Bridge,
	sessionMgr *auth.SessionManager,
	links routing.Links,
	platformAdmins auth.PlatformAdmins,
	audit *auditlog.Logger,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Log:            logger,
		Invitations:    svc,
		Identity:       provider,
		Bridge:         bridge,
		SessionMgr:     sessionMgr,
		Links:          links,
		PlatformAdmins: platformAdmins,
		AuditLog:       audit,
		Metrics:        m,
	}
}

// ServeCallback handles GET /auth/callback.
//
// The provider arrives with either token_hash and type (email confirmation)
// or access_token (an already established session). On success the login
// session is started, the pending invitation is recovered and accepted, and
// the browser lands on the organization's app.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if desc := query.Get(r, "error_description"); desc != "" || query.Get(r, "error") != "" {
		h.Bridge.Clear(w, r)
		if desc == "" {
			desc = query.Get(r, "error")
		}
		h.Log.Info("identity provider returned an error", zap.String("description", desc))
		respond.Error(w, http.StatusBadRequest, "identity_error", desc)
		return
	}

	sess, err := h.session(r)
	if err != nil {
		h.Bridge.Clear(w, r)
		respond.FromError(w, h.Log, err)
		return
	}
	if err := h.SessionMgr.SignIn(w, r, h.PlatformAdmins.FromIdentity(sess)); err != nil {
		h.Bridge.Clear(w, r)
		h.Log.Error("auth callback: save session", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error", "Could not start your session.")
		return
	}
	h.AuditLog.IdentityConfirmed(r.Context(), r, sess.User.ID, sess.User.Email)

	pc, ok := h.Bridge.Recover(w, r)
	if !ok {
		routing.RedirectInstruction{URL: DefaultLanding}.Apply(w, r)
		return
	}
	if normalize.Email(pc.Email) != normalize.Email(sess.User.Email) {
		h.Log.Warn("pending invitation belongs to a different email",
			zap.String("user_id", sess.User.ID),
			zap.String("org", pc.OrganizationSlug))
		h.AuditLog.InvitationAcceptFailed(r.Context(), r, sess.User.ID, pc.OrganizationID, "email does not match invitation")
		respond.Error(w, http.StatusForbidden, "email_mismatch", "This invitation was sent to a different email address.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	inv, err := h.Invitations.Accept(ctx, pc.Token, sess.User.ID)
	h.Metrics.ObserveInvitation(metrics.AcceptOutcome(err))
	if err != nil {
		h.AuditLog.InvitationAcceptFailed(r.Context(), r, sess.User.ID, pc.OrganizationID, err.Error())
		respond.FromError(w, h.Log, err)
		return
	}
	h.AuditLog.InvitationAccepted(r.Context(), r, sess.User.ID, inv)

	slug := pc.OrganizationSlug
	if inv.Organization != nil {
		slug = inv.Organization.Slug
	}
	routing.RedirectInstruction{URL: h.Links.AppURL(slug)}.Apply(w, r)
}

// session exchanges the callback parameters for a provider session.
func (h *Handler) session(r *http.Request) (identity.Session, error) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Identity())
	defer cancel()

	if hash := query.Get(r, "token_hash"); hash != "" {
		return h.Identity.Verify(ctx, hash, query.Get(r, "type"))
	}
	if tok := query.Get(r, "access_token"); tok != "" {
		u, err := h.Identity.GetUser(ctx, tok)
		if err != nil {
			return identity.Session{}, err
		}
		return identity.Session{AccessToken: tok, RefreshToken: query.Get(r, "refresh_token"), User: u}, nil
	}
	return identity.Session{}, identity.ErrInvalidToken
}
