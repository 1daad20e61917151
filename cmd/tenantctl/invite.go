package main

import (
	"fmt"
	"time"

	"github.com/dalemusser/tenantgate/internal/app/system/invitations"
	"github.com/dalemusser/tenantgate/internal/app/system/normalize"
	"github.com/dalemusser/tenantgate/internal/app/system/timeouts"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"github.com/spf13/cobra"
)

func newInviteCmd(c *cli) *cobra.Command {
	var (
		role, inviter, note string
		send                bool
	)
	cmd := &cobra.Command{
		Use:   "invite <slug> <email>",
		Short: "Issue an invitation and print its join link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := timeouts.WithTimeout(cmd.Context(), timeouts.Medium(), s.log, "create invitation")
			defer cancel()

			org, err := s.core.Directory.Lookup(ctx, normalize.Slug(args[0]))
			if err != nil {
				return err
			}
			inv, err := s.core.Invitations.Create(ctx, invitations.CreateInput{
				OrganizationID: org.ID,
				Email:          args[1],
				Role:           role,
				InvitedBy:      c.actor,
			})
			if err != nil {
				return err
			}
			s.core.AuditLog.InvitationCreated(ctx, nil, c.actor, inv)

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, s.core.Links.InviteURL(org.Slug, inv.Token))
			if !send {
				return nil
			}
			inv.Organization = org
			if err := s.core.Invitations.Send(ctx, inv, inviter, note); err != nil {
				s.core.AuditLog.InvitationEmailFailed(ctx, nil, c.actor, inv, err.Error())
				return fmt.Errorf("invitation created but email failed: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "sent to %s\n", inv.EmailAddress)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&role, "role", models.RoleUser, "admin | user")
	f.BoolVar(&send, "send", false, "email the invitation")
	f.StringVar(&inviter, "inviter", "", "inviter name shown in the email")
	f.StringVar(&note, "note", "", "personal note included in the email")
	return cmd
}

func newRegrantCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "regrant <token>",
		Short: "Restore the access row of an accepted invitation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := timeouts.WithTimeout(cmd.Context(), timeouts.Medium(), s.log, "regrant invitation")
			defer cancel()

			row, created, err := s.core.Invitations.Regrant(ctx, args[0])
			if err != nil {
				return err
			}
			if created {
				inv := models.Invitation{OrganizationID: row.OrganizationID, AcceptedBy: row.UserID, Role: row.Role}
				if row.InvitationID != nil {
					inv.ID = *row.InvitationID
				}
				s.core.AuditLog.InvitationRegranted(ctx, nil, c.actor, inv)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"access":  row,
				"created": created,
			})
		},
	}
}

func newPurgeCmd(c *cli) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "purge-invitations",
		Short: "Delete pending invitations that expired more than --retention ago",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if !cmd.Flags().Changed("retention") && s.cfg.InvitationRetention > 0 {
				retention = s.cfg.InvitationRetention
			}
			ctx, cancel := timeouts.WithTimeout(cmd.Context(), timeouts.Long(), s.log, "purge invitations")
			defer cancel()

			n, err := s.core.Invitations.PurgeExpired(ctx, retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d invitation(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 30*24*time.Hour, "keep expired invitations this long")
	return cmd
}
