package main

import (
	"fmt"

	"github.com/dalemusser/tenantgate/internal/app/system/normalize"
	"github.com/dalemusser/tenantgate/internal/app/system/timeouts"
	"github.com/spf13/cobra"
)

func newAccessCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Inspect and revoke organization access grants",
	}
	cmd.AddCommand(newAccessListCmd(c), newAccessRevokeCmd(c))
	return cmd
}

func newAccessListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's access rows across organizations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := timeouts.WithTimeout(cmd.Context(), timeouts.Short(), s.log, "list access")
			defer cancel()

			rows, err := s.core.Access.ListForUser(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
}

func newAccessRevokeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <slug> <user-id>",
		Short: "Deactivate a user's access to an organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := timeouts.WithTimeout(cmd.Context(), timeouts.Medium(), s.log, "revoke access")
			defer cancel()

			org, err := s.core.Directory.Lookup(ctx, normalize.Slug(args[0]))
			if err != nil {
				return err
			}
			userID := args[1]
			if err := s.core.Access.Deactivate(ctx, userID, org.ID); err != nil {
				return err
			}
			s.core.AuditLog.AccessRevoked(ctx, nil, c.actor, userID, org.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s from %s\n", userID, org.Slug)
			return nil
		},
	}
}
