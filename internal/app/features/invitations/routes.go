// internal/app/features/invitations/routes.go
package invitations

import (
	"github.com/dalemusser/tenantgate/internal/app/system/auth"
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Tenant team management: signed-in owners and admins of this host's organization.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(routing.RequireMode(routing.ModeOrganization))
		pr.Use(requireManager)

		pr.Get("/", h.ServeList)
		pr.Post("/", h.HandleCreate)
	})

	// Platform administration
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(auth.RolePlatformAdmin))

		pr.Delete("/{id}", h.HandleDelete)
	})

	return r
}
