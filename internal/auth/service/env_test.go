package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
	"github.com/aussiebroadwan/doorman/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/doorman/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

const testPassword = "Password1"

type testEnv struct {
	store    *sqlite.Store
	auth     *AuthService
	tokens   *TokenService
	sessions *SessionService
	roles    *RolesService
	audit    *AuditService
	now      time.Time
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	env := &testEnv{store: st, now: time.Now().UTC().Truncate(time.Second)}

	env.tokens, err = NewTokenService(TokenConfig{
		Issuer:        "doorman-test",
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		Now:           env.clock,
	})
	require.NoError(t, err)

	env.audit = &AuditService{Store: st, Now: env.clock}
	env.auth = &AuthService{
		Store:         st,
		Tokens:        env.tokens,
		Hasher:        cryptox.Bcrypt{Cost: 4},
		Audit:         env.audit,
		StrictRefresh: true,
		Now:           env.clock,
	}
	env.sessions = &SessionService{Store: st, Now: env.clock}
	env.roles = &RolesService{Store: st, Now: env.clock}
	return env
}

func (e *testEnv) register(t *testing.T, email string) domain.PublicUser {
	t.Helper()
	u, err := e.auth.Register(context.Background(), RegisterInput{
		Email:      email,
		Password:   testPassword,
		GivenName:  "Ada",
		FamilyName: "Lovelace",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) login(t *testing.T, email string) domain.LoginResult {
	t.Helper()
	res, err := e.auth.Login(context.Background(), LoginInput{
		Email:     email,
		Password:  testPassword,
		IPAddress: "192.0.2.10",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, e.store.DB().QueryRow(query, args...).Scan(&n))
	return n
}

func (e *testEnv) auditRecords(t *testing.T, event domain.AuditEvent) []domain.AuditRecord {
	t.Helper()
	recs, err := e.audit.List(context.Background(), store.AuditFilter{Event: event})
	require.NoError(t, err)
	return recs
}
