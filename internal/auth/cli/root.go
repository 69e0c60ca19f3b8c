// Package cli holds the doorman command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/doorman/internal/auth/app"
	"github.com/aussiebroadwan/doorman/pkg/slogx"
)

// runtime supplies configuration and logging to the commands. Tests swap
// loadConfig to avoid the process environment.
type runtime struct {
	loadConfig func() (app.Config, error)
}

// NewRootCommand builds the doorman command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&runtime{loadConfig: app.LoadConfig})
}

func newRootCommand(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "doorman",
		Short: "Authentication and session service",
		Long: `doorman registers users, verifies credentials, issues HS256 access and refresh
tokens and tracks the sessions they belong to.

Configuration is read from the environment (and a .env file when present).`,
		Version:       app.BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(rt),
		newMigrateCommand(rt),
		newSessionsCommand(rt),
		newRolesCommand(rt),
		newAuditCommand(rt),
	)
	return root
}

// ExecuteContext runs the command tree with ctx.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// config loads configuration and builds a logger writing to the command's
// stderr so stdout stays clean for command output.
func (rt *runtime) config(cmd *cobra.Command) (app.Config, *slog.Logger, error) {
	cfg, err := rt.loadConfig()
	if err != nil {
		return app.Config{}, nil, err
	}
	logger := slogx.New(slogx.Config{
		Service: "doorman",
		Version: app.BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Writer:  cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}

// withServices opens the store, builds the services and runs fn.
func (rt *runtime) withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Services) error) error {
	cfg, logger, err := rt.config(cmd)
	if err != nil {
		return err
	}

	st, err := app.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	svc, err := app.NewServices(cfg, st, logger, nil)
	if err != nil {
		return err
	}

	ctx := slogx.WithContext(cmd.Context(), logger)
	return fn(ctx, svc)
}

func newServeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the session housekeeping loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rt.loadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)

			application, err := app.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run(cmd.Context())
		},
	}
}

func newMigrateCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := rt.config(cmd)
			if err != nil {
				return err
			}
			st, err := app.OpenStore(cfg, logger)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return st.Close()
		},
	}
}
