// internal/app/features/logout/handler.go
package logout

import (
	"context"
	"net/http"

	"github.com/dalemusser/tenantgate/internal/app/system/auditlog"
	"github.com/dalemusser/tenantgate/internal/app/system/auth"
	"github.com/dalemusser/tenantgate/internal/app/system/identity"
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/dalemusser/tenantgate/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Identity   identity.Provider
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, provider identity.Provider, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Identity:   provider,
		AuditLog:   audit,
	}
}

// ServeLogout handles GET and POST /logout.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	u, signedIn := auth.CurrentUser(r)

	// Revoke the provider session; a failure here must not keep the user signed in.
	if signedIn && h.Identity != nil && u.AccessToken != "" {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Identity())
		if err := h.Identity.SignOut(ctx, u.AccessToken); err != nil {
			h.Log.Warn("identity sign-out failed", zap.String("user_id", u.ID), zap.Error(err))
		}
		cancel()
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}
	if signedIn {
		h.AuditLog.Logout(r.Context(), r, u.ID)
	}

	routing.RedirectInstruction{URL: "/"}.Apply(w, r)
}
