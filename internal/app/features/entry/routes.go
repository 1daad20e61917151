// internal/app/features/entry/routes.go
package entry

import (
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/go-chi/chi/v5"
)

// MountRoutes mounts /, /api/routing and /app on the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.ServeEntry)
	r.Get("/api/routing", h.ServeRouting)
	r.With(routing.RequireMode(routing.ModeOrganization)).Get("/app", h.ServeApp)
}
