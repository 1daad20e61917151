// internal/app/features/join/handler.go
package join

import (
	"context"
	"net/http"
	"time"

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
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// Handler serves the invitation landing page and registration.
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

type preview struct {
	Organization orgSummary `json:"organization"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

type orgSummary struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type joinInput struct {
	Token    string `json:"token"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type pendingConfirmation struct {
	Status string `json:"status"`
	Email  string `json:"email"`
}

// ServePreview handles GET /join?token=&org=. The org parameter is advisory;
// the invitation's own organization wins.
func (h *Handler) ServePreview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	inv, err := h.Invitations.GetByToken(ctx, query.Get(r, "token"))
	if err != nil {
		respond.FromError(w, h.Log, err)
		return
	}
	if org := normalize.Slug(query.Get(r, "org")); org != "" && org != inv.Organization.Slug {
		h.Log.Debug("join link org does not match invitation",
			zap.String("link_org", org),
			zap.String("org", inv.Organization.Slug))
	}
	respond.JSON(w, http.StatusOK, preview{
		Organization: orgSummary{Slug: inv.Organization.Slug, Name: inv.Organization.Name},
		Email:        inv.EmailAddress,
		Role:         inv.Role,
		ExpiresAt:    inv.ExpiresAt,
	})
}

// HandleJoin handles POST /join: register the invitee with the identity
// provider and park the invitation in the pending bridge until the
// confirmation link brings them back to /auth/callback. Providers that skip
// confirmation return a session, and the invitation is accepted right away.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var in joinInput
	if err := respond.Decode(w, r, &in, func(get func(string) string) {
		in.Token, in.Email, in.Password, in.FullName = get("token"), get("email"), get("password"), get("full_name")
	}); err != nil {
		respond.Error(w, http.StatusBadRequest, "bad_request", "Could not read the registration form.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	inv, err := h.Invitations.GetByToken(ctx, in.Token)
	if err != nil {
		h.Metrics.ObserveInvitation(metrics.AcceptOutcome(err))
		respond.FromError(w, h.Log, err)
		return
	}
	email := normalize.Email(in.Email)
	if email != inv.EmailAddress {
		h.AuditLog.SignupFailed(r.Context(), r, email, inv.OrganizationID, "email does not match invitation")
		respond.Error(w, http.StatusBadRequest, "registration_failed", "Register with the email address the invitation was sent to.")
		return
	}

	res, err := h.Identity.SignUp(ctx, identity.SignUpInput{
		Email:      email,
		Password:   in.Password,
		FullName:   normalize.Name(in.FullName),
		RedirectTo: h.Links.CallbackURL(r.Host),
	})
	if err != nil {
		h.AuditLog.SignupFailed(r.Context(), r, email, inv.OrganizationID, err.Error())
		respond.FromError(w, h.Log, err)
		return
	}
	h.AuditLog.SignupStarted(r.Context(), r, res.User.ID, email, inv.OrganizationID)

	if res.Session == nil {
		if err := h.Bridge.Store(w, r, pendingFrom(inv)); err != nil {
			// The invitee can still open the link again after confirming.
			h.Log.Error("join: could not store pending invitation",
				zap.String("invitation_id", inv.ID.Hex()),
				zap.Error(err))
		}
		respond.JSON(w, http.StatusAccepted, pendingConfirmation{Status: "confirmation_required", Email: email})
		return
	}

	if err := h.SessionMgr.SignIn(w, r, h.PlatformAdmins.FromIdentity(*res.Session)); err != nil {
		h.Log.Error("join: save session", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error", "Could not start your session.")
		return
	}
	h.accept(w, r, inv, res.User.ID)
}

// HandleAccept handles POST /join/accept for a user who is already signed in.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		routing.LoginRedirect(r).Apply(w, r)
		return
	}
	var in joinInput
	if err := respond.Decode(w, r, &in, func(get func(string) string) { in.Token = get("token") }); err != nil {
		respond.Error(w, http.StatusBadRequest, "bad_request", "Could not read the request.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	inv, err := h.Invitations.GetByToken(ctx, in.Token)
	cancel()
	if err != nil {
		h.Metrics.ObserveInvitation(metrics.AcceptOutcome(err))
		respond.FromError(w, h.Log, err)
		return
	}
	if normalize.Email(u.Email) != inv.EmailAddress {
		respond.Error(w, http.StatusForbidden, "email_mismatch", "This invitation was sent to a different email address.")
		return
	}
	h.accept(w, r, inv, u.ID)
}

// accept redeems inv for userID and sends the browser to the tenant app.
func (h *Handler) accept(w http.ResponseWriter, r *http.Request, inv models.Invitation, userID string) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	accepted, err := h.Invitations.Accept(ctx, inv.Token, userID)
	h.Bridge.Clear(w, r)
	h.Metrics.ObserveInvitation(metrics.AcceptOutcome(err))
	if err != nil {
		h.AuditLog.InvitationAcceptFailed(r.Context(), r, userID, inv.OrganizationID.Hex(), err.Error())
		respond.FromError(w, h.Log, err)
		return
	}
	h.AuditLog.InvitationAccepted(r.Context(), r, userID, accepted)

	ri := routing.RedirectInstruction{URL: h.Links.AppURL(inv.Organization.Slug)}
	if respond.WantsJSON(r) {
		respond.JSON(w, http.StatusOK, ri)
		return
	}
	ri.Apply(w, r)
}

func pendingFrom(inv models.Invitation) models.PendingInvitation {
	return models.PendingInvitation{
		Token:            inv.Token,
		OrganizationSlug: inv.Organization.Slug,
		OrganizationID:   inv.OrganizationID.Hex(),
		Role:             inv.Role,
		Email:            inv.EmailAddress,
	}
}
