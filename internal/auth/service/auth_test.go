package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	t.Run("creates active customer", func(t *testing.T) {
		phone := "+61400000000"
		u, err := env.auth.Register(ctx, RegisterInput{
			Email:      "  Ada@Example.com ",
			Password:   testPassword,
			GivenName:  "Ada",
			FamilyName: "Lovelace",
			Phone:      &phone,
		})
		require.NoError(t, err)
		require.Equal(t, "ada@example.com", u.Email)
		require.NotEmpty(t, u.ID)

		stored, err := env.store.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, domain.UserStatusActive, stored.Status)
		require.False(t, stored.Verified)
		require.NotEqual(t, testPassword, stored.PasswordHash)
		require.Equal(t, &phone, stored.Phone)

		roles, err := env.store.Roles().ListUserRoles(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, []string{"customer"}, domain.RoleNames(roles))
	})

	t.Run("same email twice", func(t *testing.T) {
		_, err := env.auth.Register(ctx, RegisterInput{Email: "ADA@example.com", Password: "Other1234"})
		require.ErrorIs(t, err, ErrEmailAlreadyRegistered)
		require.Equal(t, 1, env.count(t, `SELECT COUNT(*) FROM users WHERE email = ?`, "ada@example.com"))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := env.auth.Register(ctx, RegisterInput{Email: " ", Password: testPassword})
		require.ErrorIs(t, err, ErrValidationFailed)
		_, err = env.auth.Register(ctx, RegisterInput{Email: "x@example.com"})
		require.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("missing default role", func(t *testing.T) {
		env.auth.DefaultRole = "ghost"
		t.Cleanup(func() { env.auth.DefaultRole = "" })

		_, err := env.auth.Register(ctx, RegisterInput{Email: "ghost@example.com", Password: testPassword})
		require.ErrorIs(t, err, ErrStorageUnavailable)
		// The user insert was rolled back with the failed assignment.
		require.Equal(t, 0, env.count(t, `SELECT COUNT(*) FROM users WHERE email = ?`, "ghost@example.com"))
	})
}

func TestLoginSuccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "ada@example.com")

	res := env.login(t, "Ada@Example.com")

	// Exactly one active session bound to the issued pair.
	require.Equal(t, 1, env.count(t, `SELECT COUNT(*) FROM sessions WHERE user_id = ? AND active = TRUE`, u.ID))
	sessions, err := env.sessions.ListActiveSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	s := sessions[0]
	require.Equal(t, cryptox.FingerprintToken(res.AccessToken), s.AccessTokenHash)
	require.Equal(t, cryptox.FingerprintToken(res.RefreshToken), s.RefreshTokenHash)
	require.Equal(t, "192.0.2.10", s.IPAddress)
	require.Equal(t, "test-agent", s.UserAgent)
	require.Equal(t, domain.DefaultDevice, s.DeviceType)
	require.WithinDuration(t, env.now.Add(time.Hour), s.ExpiresAt, time.Second)

	// Tokens carry the expected claims.
	access, err := env.tokens.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, access.Subject)
	require.Equal(t, "ada@example.com", access.Email)
	require.Equal(t, []string{"customer"}, access.Roles)

	refresh, err := env.tokens.VerifyRefreshToken(res.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, refresh.Subject)

	// Profile includes the permissions granted through roles.
	require.Equal(t, u.ID, res.User.ID)
	require.Equal(t, "Ada", res.User.GivenName)
	require.Equal(t, []string{"customer"}, res.User.Roles)
	require.Equal(t, []string{"profile:read", "profile:write", "sessions:read"}, res.User.Permissions)

	// One success audit row with the device detail.
	recs := env.auditRecords(t, domain.AuditEventLogin)
	require.Len(t, recs, 1)
	require.Equal(t, domain.AuditOutcomeSuccess, recs[0].Outcome)
	require.Equal(t, u.ID, *recs[0].UserID)
	require.Equal(t, map[string]string{"device": "web"}, recs[0].Details)
	require.Empty(t, env.auditRecords(t, domain.AuditEventFailedLogin))
}

func TestLoginTouchesLastAccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "ada@example.com")

	env.advance(time.Hour)
	env.login(t, "ada@example.com")

	stored, err := env.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, stored.UpdatedAt.Equal(env.now), "updated_at %s, want %s", stored.UpdatedAt, env.now)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.register(t, "a@x.com")

		_, err := env.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "wrong", IPAddress: "192.0.2.1"})
		require.ErrorIs(t, err, ErrInvalidCredentials)

		recs := env.auditRecords(t, domain.AuditEventFailedLogin)
		require.Len(t, recs, 1)
		require.Equal(t, domain.AuditOutcomeFailure, recs[0].Outcome)
		require.NotNil(t, recs[0].UserID)
		require.Equal(t, u.ID, *recs[0].UserID)
		require.Equal(t, domain.ReasonWrongPassword, recs[0].Details["reason"])
		require.Equal(t, "a@x.com", recs[0].Details["email"])
		require.Nil(t, recs[0].UserAgent)
		require.Equal(t, 0, env.count(t, `SELECT COUNT(*) FROM sessions`))
	})

	t.Run("unknown email", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.auth.Login(ctx, LoginInput{Email: "nobody@x.com", Password: testPassword, UserAgent: "curl"})
		require.ErrorIs(t, err, ErrInvalidCredentials)

		recs := env.auditRecords(t, domain.AuditEventFailedLogin)
		require.Len(t, recs, 1)
		require.Nil(t, recs[0].UserID)
		require.Equal(t, domain.ReasonUserNotFound, recs[0].Details["reason"])
		require.Equal(t, "nobody@x.com", recs[0].Details["email"])
		require.Equal(t, "curl", *recs[0].UserAgent)
	})

	t.Run("inactive account", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.register(t, "a@x.com")
		_, err := env.store.DB().Exec(`UPDATE users SET status = 'blocked' WHERE id = ?`, u.ID)
		require.NoError(t, err)

		_, err = env.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: testPassword})
		require.ErrorIs(t, err, ErrAccountInactive)

		recs := env.auditRecords(t, domain.AuditEventFailedLogin)
		require.Len(t, recs, 1)
		require.Equal(t, domain.ReasonAccountInactive, recs[0].Details["reason"])
		require.Equal(t, u.ID, *recs[0].UserID)
	})

	t.Run("storage down", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.store.Close())

		_, err := env.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: testPassword})
		require.ErrorIs(t, err, ErrStorageUnavailable)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "ada@example.com")
	res := env.login(t, "ada@example.com")

	_, err := env.auth.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, res.AccessToken))
	require.NoError(t, env.auth.Logout(ctx, res.AccessToken), "logout is idempotent")
	require.NoError(t, env.auth.Logout(ctx, "never-issued"))
	require.ErrorIs(t, env.auth.Logout(ctx, ""), ErrTokenInvalid)

	require.Equal(t, 0, env.count(t, `SELECT COUNT(*) FROM sessions WHERE active = TRUE`))

	// The token still verifies cryptographically, the session layer refuses it.
	_, err = env.tokens.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	_, err = env.auth.Authenticate(ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("mints access token and rotates the session", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.register(t, "ada@example.com")
		login := env.login(t, "ada@example.com")

		env.advance(30 * time.Minute)
		res, err := env.auth.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, login.AccessToken, res.AccessToken)

		claims, err := env.auth.Authenticate(ctx, res.AccessToken)
		require.NoError(t, err)
		require.Equal(t, u.ID, claims.Subject)
		require.Equal(t, []string{"customer"}, claims.Roles)

		_, err = env.auth.Authenticate(ctx, login.AccessToken)
		require.ErrorIs(t, err, ErrTokenInvalid, "the old access token no longer matches the session")

		sessions, err := env.sessions.ListActiveSessions(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		require.WithinDuration(t, env.now.Add(time.Hour), sessions[0].ExpiresAt, time.Second)

		// Logging out with the refreshed token ends the session.
		require.NoError(t, env.auth.Logout(ctx, res.AccessToken))
		require.Equal(t, 0, env.count(t, `SELECT COUNT(*) FROM sessions WHERE active = TRUE`))
	})

	t.Run("picks up role changes", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "ada@example.com")
		login := env.login(t, "ada@example.com")
		require.NoError(t, env.roles.AssignRole(ctx, "ada@example.com", "staff"))

		res, err := env.auth.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)
		claims, err := env.tokens.VerifyAccessToken(res.AccessToken)
		require.NoError(t, err)
		require.Equal(t, []string{"customer", "staff"}, claims.Roles)
	})

	t.Run("access token is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "ada@example.com")
		login := env.login(t, "ada@example.com")

		_, err := env.auth.Refresh(ctx, login.AccessToken)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "ada@example.com")
		login := env.login(t, "ada@example.com")

		env.advance(7*24*time.Hour + time.Minute)
		_, err := env.auth.Refresh(ctx, login.RefreshToken)
		require.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.auth.Refresh(ctx, "garbage")
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("strict refresh after logout", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "ada@example.com")
		login := env.login(t, "ada@example.com")
		require.NoError(t, env.auth.Logout(ctx, login.AccessToken))

		_, err := env.auth.Refresh(ctx, login.RefreshToken)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("lax refresh after logout", func(t *testing.T) {
		env := newTestEnv(t)
		env.auth.StrictRefresh = false
		env.register(t, "ada@example.com")
		login := env.login(t, "ada@example.com")
		require.NoError(t, env.auth.Logout(ctx, login.AccessToken))

		res, err := env.auth.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)
		_, err = env.tokens.VerifyAccessToken(res.AccessToken)
		require.NoError(t, err)
	})

	t.Run("user gone", func(t *testing.T) {
		env := newTestEnv(t)
		env.auth.StrictRefresh = false

		orphan, err := env.tokens.IssueRefreshToken("01ARZ3NDEKTSV4RRFFQ69G5FAV")
		require.NoError(t, err)
		_, err = env.auth.Refresh(ctx, orphan)
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("strict refresh for deleted user", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.register(t, "ada@example.com")
		login := env.login(t, "ada@example.com")

		_, err := env.store.DB().Exec(`DELETE FROM users WHERE id = ?`, u.ID)
		require.NoError(t, err)
		require.Zero(t, env.count(t, `SELECT COUNT(*) FROM sessions WHERE user_id = ?`, u.ID))

		_, err = env.auth.Refresh(ctx, login.RefreshToken)
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestMe(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "ada@example.com")

	id, err := env.auth.Me(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, domain.Identity{
		ID:         u.ID,
		GivenName:  "Ada",
		FamilyName: "Lovelace",
		Email:      "ada@example.com",
		Roles:      []string{"customer"},
	}, id)

	_, err = env.auth.Me(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "ada@example.com")
	login := env.login(t, "ada@example.com")

	t.Run("expired token", func(t *testing.T) {
		env.advance(2 * time.Hour)
		t.Cleanup(func() { env.advance(-2 * time.Hour) })

		_, err := env.auth.Authenticate(ctx, login.AccessToken)
		require.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		_, err := env.auth.Authenticate(ctx, login.RefreshToken)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("all sessions revoked", func(t *testing.T) {
		_, err := env.sessions.DeactivateAllSessions(ctx, login.User.ID)
		require.NoError(t, err)
		_, err = env.auth.Authenticate(ctx, login.AccessToken)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})
}
