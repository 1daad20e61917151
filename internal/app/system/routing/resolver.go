package routing

import (
	"context"
	"errors"

	organizationstore "github.com/dalemusser/tenantgate/internal/app/store/organizations"
	"github.com/dalemusser/tenantgate/internal/app/system/access"
	"github.com/dalemusser/tenantgate/internal/app/system/license"
	"github.com/dalemusser/tenantgate/internal/app/system/subdomain"
	"github.com/dalemusser/tenantgate/internal/app/system/timeouts"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"go.uber.org/zap"
)

// Directory loads an organization by slug with its license attached.
type Directory interface {
	Lookup(ctx context.Context, slug string) (*models.Organization, error)
}

// Resolution is the routing state of one request.
type Resolution struct {
	Host         string               `json:"host"`
	Subdomain    string               `json:"subdomain"`
	Organization *models.Organization `json:"organization,omitempty"`
	Mode         Mode                 `json:"mode"`
	Role         string               `json:"role,omitempty"`
	Reason       license.Reason       `json:"reason,omitempty"`
}

// Resolver runs subdomain → directory → license → access → mode for a host.
type Resolver struct {
	Hosts     subdomain.Resolver
	Directory Directory
	License   *license.Validator
	Access    *access.Resolver
	Log       *zap.Logger
}

// Resolve never fails: lookup and access errors are logged and folded into a
// routing mode. userID is "" for anonymous requests.
func (res *Resolver) Resolve(ctx context.Context, host, userID string) Resolution {
	out := Resolution{Host: host, Subdomain: res.Hosts.Resolve(host)}
	if out.Subdomain == "" || out.Subdomain == subdomain.Admin {
		out.Mode = Select(out.Subdomain, nil, false)
		return out
	}

	org := res.lookup(ctx, out.Subdomain)
	valid := org != nil && res.License.IsValid(org.License)
	out.Organization = org
	out.Mode = Select(out.Subdomain, org, valid)

	switch out.Mode {
	case ModeLicenseError:
		out.Reason = res.License.Describe(org.License)
		return out
	case ModeOrganization:
	default:
		return out
	}

	if userID == "" {
		out.Mode = ModeOrganizationLogin
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	err := res.Access.Denial(ctx, userID, org)
	switch {
	case errors.Is(err, models.ErrInvalidLicense):
		out.Mode = ModeLicenseError
		out.Reason = res.License.Describe(org.License)
		return out
	case errors.Is(err, models.ErrNoAccess):
		out.Mode = ModeAccessDenied
		return out
	case err != nil:
		res.log().Warn("access check failed",
			zap.String("slug", out.Subdomain),
			zap.String("user_id", userID),
			zap.Error(err))
		out.Mode = ModeOrganizationLogin
		return out
	}

	role, err := res.Access.ResolveRole(ctx, userID, org)
	if err != nil || role == "" {
		if err != nil {
			res.log().Warn("role resolution failed",
				zap.String("slug", out.Subdomain),
				zap.String("user_id", userID),
				zap.Error(err))
		}
		out.Mode = ModeOrganizationLogin
		return out
	}
	org.UserRole = role
	out.Role = role
	return out
}

func (res *Resolver) lookup(ctx context.Context, slug string) *models.Organization {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	org, err := res.Directory.Lookup(ctx, slug)
	if err != nil {
		if errors.Is(err, organizationstore.ErrNotFound) {
			res.log().Debug("organization not found", zap.String("slug", slug))
		} else {
			res.log().Warn("organization lookup failed", zap.String("slug", slug), zap.Error(err))
		}
		return nil
	}
	return org
}

func (res *Resolver) log() *zap.Logger {
	if res.Log == nil {
		return zap.NewNop()
	}
	return res.Log
}
