package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/doorman/internal/auth/app"
	"github.com/aussiebroadwan/doorman/internal/auth/service"
	"github.com/aussiebroadwan/doorman/pkg/slogx"
)

type fixture struct {
	cfg    app.Config
	rt     *runtime
	userID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	vars := map[string]string{
		"AUTH_DATABASE_FILE":  filepath.Join(dir, "doorman.db"),
		"AUTH_PEPPER_FILE":    filepath.Join(dir, "pepper"),
		"AUTH_BCRYPT_COST":    "4",
		"AUTH_ACCESS_SECRET":  "access-secret-for-tests",
		"AUTH_REFRESH_SECRET": "refresh-secret-for-tests",
		"AUTH_LOG_LEVEL":      "error",
	}
	load := func() (app.Config, error) {
		return app.ParseConfig(env.Options{Environment: vars})
	}
	cfg, err := load()
	require.NoError(t, err)

	// Seed one user with a live session.
	logger := slogx.Discard()
	st, err := app.OpenStore(cfg, logger)
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()

	svc, err := app.NewServices(cfg, st, logger, nil)
	require.NoError(t, err)

	ctx := context.Background()
	user, err := svc.Auth.Register(ctx, service.RegisterInput{
		Email:      "ana@example.com",
		Password:   "Password1",
		GivenName:  "Ana",
		FamilyName: "Lopez",
	})
	require.NoError(t, err)

	_, err = svc.Auth.Login(ctx, service.LoginInput{
		Email:     "ana@example.com",
		Password:  "Password1",
		IPAddress: "10.0.0.1",
		UserAgent: "curl/8.0",
	})
	require.NoError(t, err)

	return &fixture{cfg: cfg, rt: &runtime{loadConfig: load}, userID: user.ID}
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand(f.rt)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out, err := f.run(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "migrations applied")
}

func TestSessionsCommands(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out, err := f.run(t, "sessions", "list", f.userID)
	require.NoError(t, err)
	require.Contains(t, out, "10.0.0.1")

	out, err = f.run(t, "sessions", "sweep")
	require.NoError(t, err)
	require.Contains(t, out, "0 sessions deactivated")

	out, err = f.run(t, "sessions", "revoke-all", f.userID)
	require.NoError(t, err)
	require.Contains(t, out, "1 sessions deactivated")

	out, err = f.run(t, "sessions", "list", f.userID)
	require.NoError(t, err)
	require.Contains(t, out, "No active sessions.")

	_, err = f.run(t, "sessions", "list")
	require.Error(t, err)
}

func TestRolesCommands(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out, err := f.run(t, "roles", "list")
	require.NoError(t, err)
	require.Contains(t, out, "admin")
	require.Contains(t, out, "customer")

	out, err = f.run(t, "roles", "create", "auditor", "--description", "Reads the audit log")
	require.NoError(t, err)
	require.Contains(t, out, "created role auditor")

	_, err = f.run(t, "roles", "create", "auditor")
	require.Error(t, err)

	out, err = f.run(t, "roles", "create-permission", "reports:read")
	require.NoError(t, err)
	require.Contains(t, out, "created permission reports:read")

	_, err = f.run(t, "roles", "grant", "auditor", "reports:read")
	require.NoError(t, err)
	_, err = f.run(t, "roles", "assign", "ana@example.com", "auditor")
	require.NoError(t, err)

	out, err = f.run(t, "roles", "permissions", f.userID)
	require.NoError(t, err)
	require.Contains(t, out, "reports:read")
	require.Contains(t, out, "profile:read")

	_, err = f.run(t, "roles", "revoke", "auditor", "reports:read")
	require.NoError(t, err)
	_, err = f.run(t, "roles", "unassign", "ana@example.com", "auditor")
	require.NoError(t, err)

	out, err = f.run(t, "roles", "permissions", f.userID)
	require.NoError(t, err)
	require.NotContains(t, out, "reports:read")

	_, err = f.run(t, "roles", "assign", "nobody@example.com", "auditor")
	require.Error(t, err)
}

func TestAuditList(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out, err := f.run(t, "audit", "list", "--user", f.userID)
	require.NoError(t, err)
	require.Contains(t, out, "login")
	require.Contains(t, out, "10.0.0.1")

	out, err = f.run(t, "audit", "list", "--event", "failed_login", "--json")
	require.NoError(t, err)
	require.Contains(t, out, `"records": []`)

	out, err = f.run(t, "audit", "list", "--event", "login", "--json")
	require.NoError(t, err)
	require.Contains(t, out, `"event": "login"`)
	require.Contains(t, out, `"user_agent": "curl/8.0"`)
}
