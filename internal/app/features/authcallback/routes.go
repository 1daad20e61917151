// internal/app/features/authcallback/routes.go
package authcallback

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted under /auth/callback.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeCallback)
	return r
}
