package main

import (
	"github.com/dalemusser/tenantgate/internal/app/bootstrap"
	"github.com/spf13/cobra"
)

func newResolveCmd(c *cli) *cobra.Command {
	var (
		userID  string
		offline bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <host>",
		Short: "Show how a host routes: tenant slug, license state and mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := args[0]
			if offline {
				cfg, err := c.appConfig(c.logger())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"host":      host,
					"subdomain": bootstrap.Hosts(cfg).Resolve(host),
				})
			}

			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			return printJSON(cmd.OutOrStdout(), s.core.Resolver.Resolve(cmd.Context(), host, userID))
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "identity user id to resolve access for")
	cmd.Flags().BoolVar(&offline, "offline", false, "only map the host to a slug; do not touch the database")
	return cmd
}
