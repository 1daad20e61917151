package routing

import (
	"net/http"
	"net/url"
	"strings"
)

// RedirectInstruction is a navigation decision made by core code. Only the
// outermost HTTP handler applies it.
type RedirectInstruction struct {
	URL    string `json:"url"`
	Status int    `json:"-"`
}

// Apply writes the redirect. HTMX requests receive HX-Redirect so the whole
// page navigates instead of swapping a fragment.
func (ri RedirectInstruction) Apply(w http.ResponseWriter, r *http.Request) {
	status := ri.Status
	if status == 0 {
		status = http.StatusSeeOther
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", ri.URL)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, ri.URL, status)
}

// LoginRedirect sends the browser to /login and preserves the current path.
func LoginRedirect(r *http.Request) RedirectInstruction {
	return RedirectInstruction{
		URL:    "/login?return=" + url.QueryEscape(r.URL.RequestURI()),
		Status: http.StatusSeeOther,
	}
}

// Links builds absolute URLs on tenant hosts.
type Links struct {
	Scheme string // "https" when empty
	Apex   string // e.g. "pic2data.fi"
}

func (l Links) scheme() string {
	if l.Scheme == "" {
		return "https"
	}
	return l.Scheme
}

// TenantHost returns "<slug>.<apex>", or the apex itself for an empty slug.
func (l Links) TenantHost(slug string) string {
	apex := strings.TrimPrefix(l.Apex, ".")
	if slug == "" {
		return apex
	}
	return slug + "." + apex
}

// AppURL is the post-login landing page of a tenant: https://<slug>.<apex>/app.
func (l Links) AppURL(slug string) string {
	return l.scheme() + "://" + l.TenantHost(slug) + "/app"
}

// InviteURL is the link mailed to an invitee:
// https://<slug>.<apex>/join?token=<token>&org=<slug>.
func (l Links) InviteURL(slug, token string) string {
	q := url.Values{}
	q.Set("token", token)
	if slug != "" {
		q.Set("org", slug)
	}
	return l.scheme() + "://" + l.TenantHost(slug) + "/join?" + q.Encode()
}

// CallbackURL is the identity provider's post-confirmation target for host.
func (l Links) CallbackURL(host string) string {
	return l.scheme() + "://" + host + "/auth/callback"
}
