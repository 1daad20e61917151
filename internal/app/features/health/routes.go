// internal/app/features/health/routes.go
package health

import "github.com/go-chi/chi/v5"

// Routes serves liveness at / and readiness at /ready (mounted under /health).
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Serve)
	r.Get("/ready", h.Ready)
	return r
}
