// internal/app/features/login/handler.go
package login

import (
	"context"
	"net/http"

	"github.com/dalemusser/tenantgate/internal/app/system/auditlog"
	"github.com/dalemusser/tenantgate/internal/app/system/auth"
	"github.com/dalemusser/tenantgate/internal/app/system/identity"
	"github.com/dalemusser/tenantgate/internal/app/system/inputval"
	"github.com/dalemusser/tenantgate/internal/app/system/normalize"
	"github.com/dalemusser/tenantgate/internal/app/system/ratelimit"
	"github.com/dalemusser/tenantgate/internal/app/system/respond"
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/dalemusser/tenantgate/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.uber.org/zap"
)

type Handler struct {
	Log            *zap.Logger
	SessionMgr     *auth.SessionManager
	Identity       identity.Provider
	Limiter        *ratelimit.LoginLimiter
	AuditLog       *auditlog.Logger
	PlatformAdmins auth.PlatformAdmins
}

func NewHandler(
	sessionMgr *auth.SessionManager,
	provider identity.Provider,
	limiter *ratelimit.LoginLimiter,
	audit *auditlog.Logger,
	platformAdmins auth.PlatformAdmins,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Log:            logger,
		SessionMgr:     sessionMgr,
		Identity:       provider,
		Limiter:        limiter,
		AuditLog:       audit,
		PlatformAdmins: platformAdmins,
	}
}

type loginPage struct {
	Organization *orgSummary `json:"organization,omitempty"`
	Return       string      `json:"return,omitempty"`
	SignedIn     bool        `json:"signed_in"`
}

type orgSummary struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Return   string `json:"return"`
}

// ServeLoginForm handles GET /login: what the sign-in form needs to know
// about the tenant it is shown on.
func (h *Handler) ServeLoginForm(w http.ResponseWriter, r *http.Request) {
	page := loginPage{Return: query.Get(r, "return")}
	if rr := routing.FromRequest(r); rr != nil && rr.Organization != nil {
		page.Organization = &orgSummary{Slug: rr.Organization.Slug, Name: rr.Organization.Name}
	}
	_, page.SignedIn = auth.CurrentUser(r)
	respond.JSON(w, http.StatusOK, page)
}

// HandleLoginPost handles POST /login.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := respond.Decode(w, r, &in, func(get func(string) string) {
		in.Email, in.Password, in.Return = get("email"), get("password"), get("return")
	}); err != nil {
		respond.Error(w, http.StatusBadRequest, "bad_request", "Could not read the sign-in form.")
		return
	}
	email := normalize.Email(in.Email)
	if !inputval.IsValidEmail(email) || in.Password == "" {
		respond.Error(w, http.StatusBadRequest, "bad_request", "Email and password are required.")
		return
	}

	if ok, msg := h.Limiter.Check(r, email); !ok {
		h.AuditLog.RateLimited(r.Context(), r, email, "login")
		respond.Error(w, http.StatusTooManyRequests, "rate_limited", msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Identity())
	defer cancel()

	sess, err := h.Identity.SignIn(ctx, email, in.Password)
	if err != nil {
		h.AuditLog.LoginFailed(r.Context(), r, email, err.Error())
		respond.FromError(w, h.Log, err)
		return
	}

	if err := h.SessionMgr.SignIn(w, r, h.PlatformAdmins.FromIdentity(sess)); err != nil {
		h.Log.Error("login: save session", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error", "Could not start your session.")
		return
	}
	h.Limiter.ResetEmail(email)
	h.AuditLog.LoginSuccess(r.Context(), r, sess.User.ID, sess.User.Email)

	dest := urlutil.SafeReturn(in.Return, "", "/")
	if respond.WantsJSON(r) {
		respond.JSON(w, http.StatusOK, routing.RedirectInstruction{URL: dest})
		return
	}
	routing.RedirectInstruction{URL: dest}.Apply(w, r)
}
