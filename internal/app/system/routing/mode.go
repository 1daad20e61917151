// Package routing selects the top-level application state for a request and
// carries it, request-scoped, through the handler chain.
package routing

import (
	"github.com/dalemusser/tenantgate/internal/app/system/subdomain"
	"github.com/dalemusser/tenantgate/internal/domain/models"
)

// Mode is the routing state chosen before any tenant content is served.
type Mode string

const (
	ModeMainSite          Mode = "MAIN_SITE"
	ModeAdmin             Mode = "ADMIN"
	ModeOrganizationLogin Mode = "ORGANIZATION_LOGIN"
	ModeLicenseError      Mode = "LICENSE_ERROR"
	ModeAccessDenied      Mode = "ACCESS_DENIED"
	ModeOrganization      Mode = "ORGANIZATION"
)

// Select is the pure decision table over (subdomain, organization, license
// validity):
//
//	none      -            -        MAIN_SITE
//	"admin"   -            -        ADMIN
//	other     none         -        ORGANIZATION_LOGIN
//	other     present      invalid  LICENSE_ERROR
//	other     present      valid    ORGANIZATION
//
// ORGANIZATION still needs a resolved role; Resolver layers that rule on top.
func Select(sub string, org *models.Organization, licenseValid bool) Mode {
	switch {
	case sub == "":
		return ModeMainSite
	case sub == subdomain.Admin:
		return ModeAdmin
	case org == nil:
		return ModeOrganizationLogin
	case !licenseValid:
		return ModeLicenseError
	default:
		return ModeOrganization
	}
}

// Denied reports whether m blocks tenant content with an explanation page.
func (m Mode) Denied() bool {
	return m == ModeLicenseError || m == ModeAccessDenied
}
