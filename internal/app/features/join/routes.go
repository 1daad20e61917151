// internal/app/features/join/routes.go
package join

import (
	"net/http"

	"github.com/dalemusser/tenantgate/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter mounted under /join. POSTs share one per-IP
// limiter.
func Routes(h *Handler, limiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServePreview)
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.ByIP(limiter, func(req *http.Request) {
			h.AuditLog.RateLimited(req.Context(), req, "", "join")
		}))
		r.Post("/", h.HandleJoin)
		r.Post("/accept", h.HandleAccept)
	})
	return r
}
