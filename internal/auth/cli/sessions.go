package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/doorman/internal/auth/app"
)

func newSessionsCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and close sessions",
		Long: `Inspect and close sessions.

Examples:
  doorman sessions sweep
  doorman sessions list 01J9Z3Q8W6R5N4M3K2J1H0G9F8
  doorman sessions revoke-all 01J9Z3Q8W6R5N4M3K2J1H0G9F8`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "sweep",
			Short: "Deactivate every session past its expiry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rt.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
					n, err := svc.Sessions.CleanExpiredSessions(ctx)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d sessions deactivated\n", n)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "revoke-all <user-id>",
			Short: "Deactivate every active session of a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
					n, err := svc.Sessions.DeactivateAllSessions(ctx, args[0])
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d sessions deactivated\n", n)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "list <user-id>",
			Short: "List a user's active sessions, newest first",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
					sessions, err := svc.Sessions.ListActiveSessions(ctx, args[0])
					if err != nil {
						return err
					}
					if len(sessions) == 0 {
						_, err = fmt.Fprintln(cmd.OutOrStdout(), "No active sessions.")
						return err
					}

					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					_, _ = fmt.Fprintln(w, "ID\tIP\tDEVICE\tCREATED\tEXPIRES")
					for _, s := range sessions {
						_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
							s.ID, s.IPAddress, s.DeviceType,
							s.CreatedAt.Format(time.RFC3339), s.ExpiresAt.Format(time.RFC3339))
					}
					return w.Flush()
				})
			},
		},
	)
	return cmd
}
