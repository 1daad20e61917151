// internal/app/features/entry/handler.go
package entry

import (
	"net/http"

	"github.com/dalemusser/tenantgate/internal/app/system/auditlog"
	"github.com/dalemusser/tenantgate/internal/app/system/auth"
	"github.com/dalemusser/tenantgate/internal/app/system/license"
	"github.com/dalemusser/tenantgate/internal/app/system/respond"
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler answers for the routing state of the current host.
type Handler struct {
	Log          *zap.Logger
	AuditLog     *auditlog.Logger
	ContactEmail string // fallback when the organization has none
}

func NewHandler(contactEmail string, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Log: logger, AuditLog: audit, ContactEmail: contactEmail}
}

type view struct {
	Mode         routing.Mode   `json:"mode"`
	Host         string         `json:"host"`
	Subdomain    string         `json:"subdomain,omitempty"`
	Organization *orgView       `json:"organization,omitempty"`
	Role         string         `json:"role,omitempty"`
	SignedIn     bool           `json:"signed_in"`
	Reason       license.Reason `json:"reason,omitempty"`
	Message      string         `json:"message,omitempty"`
	Contact      string         `json:"contact,omitempty"`
}

type orgView struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// ServeEntry handles GET / on any host. Browsers on a tenant that needs a
// sign-in are sent to /login; everything else gets the routing view.
func (h *Handler) ServeEntry(w http.ResponseWriter, r *http.Request) {
	rr := routing.FromRequest(r)
	if rr != nil && rr.Mode == routing.ModeOrganizationLogin && !respond.WantsJSON(r) {
		routing.LoginRedirect(r).Apply(w, r)
		return
	}
	h.write(w, r, rr)
}

// ServeRouting handles GET /api/routing.
func (h *Handler) ServeRouting(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, routing.FromRequest(r))
}

// ServeApp handles GET /app, the tenant landing page. It is mounted behind
// routing.RequireMode(ModeOrganization).
func (h *Handler) ServeApp(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, routing.FromRequest(r))
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, rr *routing.Resolution) {
	if rr == nil {
		h.Log.Error("entry: request reached handler without a routing resolution")
		respond.Error(w, http.StatusInternalServerError, "internal_error", "Routing is unavailable.")
		return
	}
	u, signedIn := auth.CurrentUser(r)
	v := view{
		Mode:      rr.Mode,
		Host:      rr.Host,
		Subdomain: rr.Subdomain,
		Role:      rr.Role,
		SignedIn:  signedIn,
	}
	if rr.Organization != nil {
		v.Organization = &orgView{Slug: rr.Organization.Slug, Name: rr.Organization.Name}
	}
	if !rr.Mode.Denied() {
		respond.JSON(w, http.StatusOK, v)
		return
	}

	v.Contact = h.contact(rr)
	switch rr.Mode {
	case routing.ModeLicenseError:
		v.Reason = rr.Reason
		v.Message = rr.Reason.Message()
	case routing.ModeAccessDenied:
		v.Message = "You do not have access to this organization. Ask an organization administrator for an invitation."
	}
	if signedIn {
		var orgID primitive.ObjectID
		if rr.Organization != nil {
			orgID = rr.Organization.ID
		}
		h.AuditLog.RoutingDenied(r.Context(), r, u.ID, orgID, string(rr.Mode), string(rr.Reason))
	}
	respond.JSON(w, http.StatusForbidden, v)
}

func (h *Handler) contact(rr *routing.Resolution) string {
	if rr.Organization != nil && rr.Organization.ContactEmail != "" {
		return rr.Organization.ContactEmail
	}
	return h.ContactEmail
}
