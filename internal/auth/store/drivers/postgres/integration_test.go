package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
	"github.com/aussiebroadwan/doorman/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/doorman/pkg/idx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a throwaway postgres container and returns a migrated store.
func setupPostgres(t *testing.T) *postgres.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "doorman",
			"POSTGRES_PASSWORD": "doorman",
			"POSTGRES_DB":       "doorman",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://doorman:doorman@%s:%s/doorman?sslmode=disable", host, port.Port())
	st, err := postgres.NewStore(dsn, postgres.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	st := setupPostgres(t)
	ctx := context.Background()

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        "pg@example.com",
		PasswordHash: "hash",
		GivenName:    "Pat",
		FamilyName:   "Gres",
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(ctx, u))

	dup := u
	dup.ID = idx.New().String()
	require.ErrorIs(t, st.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	customer, err := st.Roles().GetRoleByName(ctx, "customer")
	require.NoError(t, err)
	require.NoError(t, st.Roles().AssignRole(ctx, u.ID, customer.ID, now))
	require.NoError(t, st.Roles().AssignRole(ctx, u.ID, customer.ID, now))

	perms, err := st.Roles().ListUserPermissions(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"profile:read", "profile:write", "sessions:read"}, domain.PermissionNames(perms))

	require.NoError(t, st.Sessions().CreateSession(ctx, domain.Session{
		ID:               idx.New().String(),
		UserID:           u.ID,
		AccessTokenHash:  "access",
		RefreshTokenHash: "refresh",
		DeviceType:       domain.DefaultDevice,
		CreatedAt:        now.Add(-2 * time.Hour),
		ExpiresAt:        now.Add(-time.Hour),
		Active:           true,
	}))
	n, err := st.Sessions().DeactivateExpiredSessions(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.NoError(t, st.Audit().AppendAuditRecord(ctx, domain.AuditRecord{
		ID:        idx.New().String(),
		UserID:    &u.ID,
		Event:     domain.AuditEventLogin,
		Outcome:   domain.AuditOutcomeSuccess,
		Details:   map[string]string{"device": "web"},
		CreatedAt: now,
	}))
	recs, err := st.Audit().ListAuditRecords(ctx, store.AuditFilter{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "web", recs[0].Details["device"])
}
