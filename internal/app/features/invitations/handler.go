// internal/app/features/invitations/handler.go
package invitations

import (
	"context"
	"net/http"

	"github.com/dalemusser/tenantgate/internal/app/system/auditlog"
	"github.com/dalemusser/tenantgate/internal/app/system/auth"
	invitationsvc "github.com/dalemusser/tenantgate/internal/app/system/invitations"
	"github.com/dalemusser/tenantgate/internal/app/system/metrics"
	"github.com/dalemusser/tenantgate/internal/app/system/respond"
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/dalemusser/tenantgate/internal/app/system/timeouts"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler lets organization owners and admins invite people, and platform
// admins remove invitations.
type Handler struct {
	Log      *zap.Logger
	Service  *invitationsvc.Service
	AuditLog *auditlog.Logger
	Metrics  *metrics.Metrics
}

func NewHandler(svc *invitationsvc.Service, audit *auditlog.Logger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{Log: logger, Service: svc, AuditLog: audit, Metrics: m}
}

type createInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Note  string `json:"note"`
}

type created struct {
	Invitation models.Invitation `json:"invitation"`
	EmailSent  bool              `json:"email_sent"`
}

type pendingList struct {
	Invitations []models.Invitation `json:"invitations"`
}

// HandleCreate handles POST /invitations on a tenant host.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	rr := routing.FromRequest(r)
	u, _ := auth.CurrentUser(r)

	var in createInput
	if err := respond.Decode(w, r, &in, func(get func(string) string) {
		in.Email, in.Role, in.Note = get("email"), get("role"), get("note")
	}); err != nil {
		respond.Error(w, http.StatusBadRequest, "bad_request", "Could not read the invitation.")
		return
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	inv, err := h.Service.Create(ctx, invitationsvc.CreateInput{
		OrganizationID: rr.Organization.ID,
		Email:          in.Email,
		Role:           in.Role,
		InvitedBy:      u.ID,
	})
	if err != nil {
		respond.FromError(w, h.Log, err)
		return
	}
	h.Metrics.ObserveInvitation(metrics.InvitationCreated)
	h.AuditLog.InvitationCreated(r.Context(), r, u.ID, inv)

	inv.Organization = rr.Organization
	sent := true
	if err := h.Service.Send(ctx, inv, u.Name, in.Note); err != nil {
		sent = false
		h.Log.Warn("invitation email failed",
			zap.String("invitation_id", inv.ID.Hex()),
			zap.Error(err))
		h.AuditLog.InvitationEmailFailed(r.Context(), r, u.ID, inv, err.Error())
	}
	inv.Organization = nil
	respond.JSON(w, http.StatusCreated, created{Invitation: inv, EmailSent: sent})
}

// ServeList handles GET /invitations: the tenant's unexpired pending
// invitations.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	rr := routing.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Service.ListPending(ctx, rr.Organization.ID)
	if err != nil {
		respond.FromError(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.Invitation{}
	}
	respond.JSON(w, http.StatusOK, pendingList{Invitations: list})
}

// HandleDelete handles DELETE /invitations/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "bad_request", "Invalid invitation id.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Service.Delete(ctx, id); err != nil {
		respond.FromError(w, h.Log, err)
		return
	}
	h.Metrics.ObserveInvitation(metrics.InvitationDeleted)
	h.AuditLog.InvitationDeleted(r.Context(), r, auth.UserID(r), id)
	w.WriteHeader(http.StatusNoContent)
}

// requireManager admits owners and admins of the resolved organization.
func requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := routing.FromRequest(r)
		if rr == nil || rr.Organization == nil {
			http.NotFound(w, r)
			return
		}
		if rr.Role != models.RoleOwner && rr.Role != models.RoleAdmin {
			respond.Error(w, http.StatusForbidden, "forbidden", "Only organization owners and admins can manage invitations.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
