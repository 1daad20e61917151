package auth

import (
	"github.com/dalemusser/tenantgate/internal/app/system/identity"
	"github.com/dalemusser/tenantgate/internal/app/system/normalize"
)

// PlatformAdmins is the set of email addresses granted RolePlatformAdmin.
type PlatformAdmins map[string]bool

// NewPlatformAdmins normalizes emails into a PlatformAdmins set.
func NewPlatformAdmins(emails []string) PlatformAdmins {
	p := make(PlatformAdmins, len(emails))
	for _, e := range emails {
		if e = normalize.Email(e); e != "" {
			p[e] = true
		}
	}
	return p
}

// RoleFor returns the platform role for email.
func (p PlatformAdmins) RoleFor(email string) string {
	if p[normalize.Email(email)] {
		return RolePlatformAdmin
	}
	return RoleUser
}

// FromIdentity builds the session record for a provider session.
func (p PlatformAdmins) FromIdentity(s identity.Session) SessionUser {
	return SessionUser{
		ID:          s.User.ID,
		Name:        s.User.DisplayName(),
		Email:       s.User.Email,
		Role:        p.RoleFor(s.User.Email),
		AccessToken: s.AccessToken,
	}
}
