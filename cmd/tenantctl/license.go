package main

import (
	"fmt"
	"strings"
	"time"

	licensestore "github.com/dalemusser/tenantgate/internal/app/store/licenses"
	"github.com/dalemusser/tenantgate/internal/app/system/normalize"
	"github.com/dalemusser/tenantgate/internal/app/system/timeouts"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"github.com/spf13/cobra"
)

func newLicenseCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Inspect and change organization licenses",
	}
	cmd.AddCommand(newLicenseShowCmd(c), newLicenseSetCmd(c))
	return cmd
}

func newLicenseShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <slug>",
		Short: "Print the license and whether it is currently valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := timeouts.WithTimeout(cmd.Context(), timeouts.Short(), s.log, "show license")
			defer cancel()

			org, err := s.core.Directory.Lookup(ctx, normalize.Slug(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"organization": org.Slug,
				"license":      org.License,
				"valid":        s.core.License.IsValid(org.License),
				"reason":       s.core.License.Describe(org.License),
			})
		},
	}
}

// licenseFlags holds the raw flag values for license set.
type licenseFlags struct {
	status, expires, trialEnds, licenseType string
	maxUsers                                int
}

// update turns the changed flags into a store update.
func (lf licenseFlags) update(changed func(string) bool) (licensestore.Update, error) {
	var u licensestore.Update
	if changed("status") {
		st := strings.ToLower(strings.TrimSpace(lf.status))
		if !models.IsLicenseStatus(st) {
			return u, fmt.Errorf("unknown license status %q", lf.status)
		}
		u.Status = &st
	}
	if changed("type") {
		u.LicenseType = &lf.licenseType
	}
	if changed("max-users") {
		u.MaxUsers = &lf.maxUsers
	}
	if changed("expires") {
		t, err := parseDate(lf.expires)
		if err != nil {
			return u, fmt.Errorf("--expires: %w", err)
		}
		u.ExpiresAt = &t
	}
	if changed("trial-ends") {
		t, err := parseDate(lf.trialEnds)
		if err != nil {
			return u, fmt.Errorf("--trial-ends: %w", err)
		}
		u.TrialEndsAt = &t
	}
	if u == (licensestore.Update{}) {
		return u, fmt.Errorf("nothing to change")
	}
	return u, nil
}

func newLicenseSetCmd(c *cli) *cobra.Command {
	var lf licenseFlags
	cmd := &cobra.Command{
		Use:   "set <slug>",
		Short: "Change license status, expiry or trial end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := lf.update(cmd.Flags().Changed)
			if err != nil {
				return err
			}

			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := timeouts.WithTimeout(cmd.Context(), timeouts.Medium(), s.log, "update license")
			defer cancel()

			org, err := s.core.Directory.Lookup(ctx, normalize.Slug(args[0]))
			if err != nil {
				return err
			}
			lic, err := s.core.Directory.Licenses().Update(ctx, org.ID, u)
			if err != nil {
				return err
			}
			s.core.AuditLog.LicenseUpdated(ctx, nil, c.actor, lic)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"license": lic,
				"valid":   s.core.License.IsValid(&lic),
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&lf.status, "status", "", "trial | active | expired | suspended")
	f.StringVar(&lf.expires, "expires", "", "expiry date (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&lf.trialEnds, "trial-ends", "", "trial end date (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&lf.licenseType, "type", "", "license type label")
	f.IntVar(&lf.maxUsers, "max-users", 0, "seat limit recorded on the license")
	return cmd
}

// parseDate accepts a calendar date (end of that day, UTC) or an RFC 3339
// timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want YYYY-MM-DD or RFC 3339, got %q", s)
	}
	return d.Add(24*time.Hour - time.Second).UTC(), nil
}
