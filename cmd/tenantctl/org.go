package main

import (
	"fmt"

	"github.com/dalemusser/tenantgate/internal/app/system/directory"
	"github.com/dalemusser/tenantgate/internal/app/system/normalize"
	"github.com/dalemusser/tenantgate/internal/app/system/timeouts"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"github.com/spf13/cobra"
)

func newOrgCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Provision and retire organizations",
	}
	cmd.AddCommand(newOrgCreateCmd(c), newOrgRetireCmd(c), newOrgListCmd(c))
	return cmd
}

func newOrgCreateCmd(c *cli) *cobra.Command {
	var (
		name, contact, industry, plan, owner string
	)
	cmd := &cobra.Command{
		Use:   "create <slug>",
		Short: "Create an organization with a trial license",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := timeouts.WithTimeout(cmd.Context(), timeouts.Long(), s.log, "create organization")
			defer cancel()

			slug := normalize.Slug(args[0])
			if name == "" {
				name = slug
			}
			org, err := s.core.Directory.Create(ctx, directory.CreateInput{
				Organization: models.Organization{
					Slug:             slug,
					Name:             normalize.Name(name),
					ContactEmail:     normalize.Email(contact),
					IndustryType:     industry,
					SubscriptionPlan: plan,
				},
				OwnerUserID: owner,
			})
			if err != nil {
				return err
			}
			s.core.AuditLog.OrgCreated(ctx, nil, c.actor, *org)
			fmt.Fprintf(cmd.ErrOrStderr(), "tenant available at %s\n", s.core.Links.AppURL(org.Slug))
			return printJSON(cmd.OutOrStdout(), org)
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "display name (defaults to the slug)")
	f.StringVar(&contact, "contact", "", "contact email shown on license errors")
	f.StringVar(&industry, "industry", "", "industry type")
	f.StringVar(&plan, "plan", "", "subscription plan label")
	f.StringVar(&owner, "owner", "", "identity user id granted the owner role")
	return cmd
}

func newOrgRetireCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "retire <slug>",
		Short: "Remove an organization and reserve its slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := timeouts.WithTimeout(cmd.Context(), timeouts.Long(), s.log, "retire organization")
			defer cancel()

			slug := normalize.Slug(args[0])
			if err := s.core.Directory.Retire(ctx, slug); err != nil {
				return err
			}
			s.core.AuditLog.OrgRetired(ctx, nil, c.actor, slug)
			fmt.Fprintf(cmd.OutOrStdout(), "retired %s\n", slug)
			return nil
		},
	}
}

func newOrgListCmd(c *cli) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := timeouts.WithTimeout(cmd.Context(), timeouts.Medium(), s.log, "list organizations")
			defer cancel()

			orgs, err := s.core.Directory.List(ctx, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, org := range orgs {
				fmt.Fprintf(w, "%-24s %-32s %s\n", org.Slug, org.Name, org.ID.Hex())
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 200, "maximum organizations to list")
	return cmd
}
