package routing

import (
	"context"
	"net/http"
)

type ctxKey string

const resolutionKey ctxKey = "routing"

// UserFunc returns the signed-in user's identity id for r, or "".
type UserFunc func(r *http.Request) string

// Middleware resolves every request and stores the Resolution in its context.
// It never short-circuits; handlers decide what to render for each mode.
func Middleware(res *Resolver, user UserFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := ""
			if user != nil {
				uid = user(r)
			}
			rr := res.Resolve(r.Context(), r.Host, uid)
			next.ServeHTTP(w, withResolution(r, &rr))
		})
	}
}

// FromRequest returns the request's Resolution, or nil if none is attached.
func FromRequest(r *http.Request) *Resolution {
	return FromContext(r.Context())
}

// FromContext returns the Resolution stored in ctx, or nil.
func FromContext(ctx context.Context) *Resolution {
	if rr, ok := ctx.Value(resolutionKey).(*Resolution); ok {
		return rr
	}
	return nil
}

func withResolution(r *http.Request, rr *Resolution) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), resolutionKey, rr))
}

// RequireMode rejects requests whose resolved mode is not one of modes.
// Browsers are sent to /login when the tenant needs a sign-in; everything else
// gets 404 so tenant routes do not leak across hosts.
func RequireMode(modes ...Mode) func(http.Handler) http.Handler {
	set := make(map[Mode]struct{}, len(modes))
	for _, m := range modes {
		set[m] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rr := FromRequest(r)
			if rr != nil {
				if _, ok := set[rr.Mode]; ok {
					next.ServeHTTP(w, r)
					return
				}
				if rr.Mode == ModeOrganizationLogin {
					LoginRedirect(r).Apply(w, r)
					return
				}
			}
			http.NotFound(w, r)
		})
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Test Helpers                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// WithTestResolution returns r carrying rr. Exported for handler tests.
func WithTestResolution(r *http.Request, rr Resolution) *http.Request {
	return withResolution(r, &rr)
}

// WithTestResolutionCtx returns ctx carrying rr.
func WithTestResolutionCtx(ctx context.Context, rr Resolution) context.Context {
	return context.WithValue(ctx, resolutionKey, &rr)
}
