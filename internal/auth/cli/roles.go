package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/doorman/internal/auth/app"
)

func newRolesCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage roles, permissions and assignments",
		Long: `Manage roles, permissions and assignments.

Examples:
  doorman roles list
  doorman roles create staff --description "Back office staff"
  doorman roles create-permission reports:read
  doorman roles grant staff reports:read
  doorman roles assign ana@example.com staff
  doorman roles permissions 01J9Z3Q8W6R5N4M3K2J1H0G9F8`,
	}

	// simple builds a command that runs one service call and prints done.
	simple := func(use, short string, nargs int, run func(ctx context.Context, svc *app.Services, args []string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
					if err := run(ctx, svc, args); err != nil {
						return err
					}
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "done")
					return err
				})
			},
		}
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
				role, err := svc.Roles.CreateRole(ctx, args[0], description)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "created role %s (%s)\n", role.Name, role.ID)
				return err
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "human readable description")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every role",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rt.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
					roles, err := svc.Roles.ListRoles(ctx)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					_, _ = fmt.Fprintln(w, "NAME\tDESCRIPTION")
					for _, r := range roles {
						_, _ = fmt.Fprintf(w, "%s\t%s\n", r.Name, r.Description)
					}
					return w.Flush()
				})
			},
		},
		create,
		&cobra.Command{
			Use:   "create-permission <resource:action>",
			Short: "Create a permission",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
					p, err := svc.Roles.CreatePermission(ctx, args[0])
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "created permission %s (%s)\n", p.Name, p.ID)
					return err
				})
			},
		},
		simple("assign <email> <role>", "Give a user a role", 2, func(ctx context.Context, svc *app.Services, args []string) error {
			return svc.Roles.AssignRole(ctx, args[0], args[1])
		}),
		simple("unassign <email> <role>", "Take a role from a user", 2, func(ctx context.Context, svc *app.Services, args []string) error {
			return svc.Roles.UnassignRole(ctx, args[0], args[1])
		}),
		simple("grant <role> <permission>", "Grant a permission to a role", 2, func(ctx context.Context, svc *app.Services, args []string) error {
			return svc.Roles.GrantPermission(ctx, args[0], args[1])
		}),
		simple("revoke <role> <permission>", "Revoke a permission from a role", 2, func(ctx context.Context, svc *app.Services, args []string) error {
			return svc.Roles.RevokePermission(ctx, args[0], args[1])
		}),
		&cobra.Command{
			Use:   "permissions <user-id>",
			Short: "Print the permissions a user holds through their roles",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
					perms, err := svc.Roles.Permissions(ctx, args[0])
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(perms, "\n"))
					return err
				})
			},
		},
	)
	return cmd
}
