package app

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, vars map[string]string) (Config, error) {
	t.Helper()
	return ParseConfig(env.Options{Environment: vars})
}

func TestParseConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := parse(t, map[string]string{})
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "doorman", cfg.Issuer)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	require.Equal(t, time.Hour, cfg.Tokens.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.Tokens.RefreshTTL)
	require.Equal(t, time.Hour, cfg.Tokens.SessionTTL)
	require.True(t, cfg.Tokens.StrictRefresh)
	require.Equal(t, "customer", cfg.Tokens.DefaultRole)
	require.Equal(t, "bcrypt", cfg.Password.Hasher)
	require.Equal(t, 10, cfg.Password.BcryptCost)
	require.Equal(t, DriverSQLite, cfg.Database.Driver)
	require.Equal(t, 5*time.Second, cfg.Database.StoreTimeout)
	require.Equal(t, 15*time.Minute, cfg.Database.HousekeepingInterval)
	require.Equal(t, BackendMemory, cfg.Limits.Backend)
	require.Equal(t, 5, cfg.Limits.LoginRequests)
	require.Equal(t, 15*time.Minute, cfg.Limits.LoginWindow)
	require.Equal(t, 100, cfg.Limits.APIRequests)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.True(t, cfg.MetricsEnabled)
	require.Empty(t, cfg.Limits.TrustedProxies)
}

func TestParseConfigOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := parse(t, map[string]string{
		"AUTH_PORT":            "9090",
		"AUTH_ACCESS_TTL":      "15m",
		"AUTH_STRICT_REFRESH":  "false",
		"AUTH_DATABASE_DRIVER": "postgres",
		"AUTH_DATABASE_URL":    "postgres://u:p@localhost/doorman",
		"RATELIMIT_BACKEND":    "redis",
		"REDIS_DB":             "3",
		"AUTH_ACCESS_SECRET":   "a",
		"AUTH_REFRESH_SECRET":  "b",
		"AUTH_TRUSTED_PROXIES": "10.0.0.0/8,192.0.2.10",
	})
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 15*time.Minute, cfg.Tokens.AccessTTL)
	require.False(t, cfg.Tokens.StrictRefresh)
	require.Equal(t, DriverPostgres, cfg.Database.Driver)
	require.Equal(t, BackendRedis, cfg.Limits.Backend)
	require.Equal(t, 3, cfg.Redis.DB)
	require.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.Limits.TrustedProxies)
}

func TestParseConfigRejects(t *testing.T) {
	t.Parallel()

	tests := map[string]map[string]string{
		"unknown driver":    {"AUTH_DATABASE_DRIVER": "mysql"},
		"postgres no url":   {"AUTH_DATABASE_DRIVER": "postgres"},
		"unknown hasher":    {"AUTH_PASSWORD_HASHER": "md5"},
		"unknown backend":   {"RATELIMIT_BACKEND": "memcached"},
		"zero ttl":          {"AUTH_ACCESS_TTL": "0s"},
		"negative session":  {"AUTH_SESSION_TTL": "-1m"},
		"same secrets":      {"AUTH_ACCESS_SECRET": "s", "AUTH_REFRESH_SECRET": "s"},
		"bad port":          {"AUTH_PORT": "70000"},
		"bad duration":      {"AUTH_REFRESH_TTL": "soon"},
		"zero login budget": {"RATELIMIT_LOGIN_REQUESTS": "0"},
		"bad proxy":         {"AUTH_TRUSTED_PROXIES": "10.0.0.0/8,proxy.local"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := parse(t, vars)
			require.Error(t, err)
		})
	}
}
