package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/aussiebroadwan/doorman/internal/auth/http"
	"github.com/aussiebroadwan/doorman/internal/auth/metrics"
	"github.com/aussiebroadwan/doorman/internal/auth/service"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
	"github.com/aussiebroadwan/doorman/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/doorman/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/doorman/pkg/cryptox"
	"github.com/aussiebroadwan/doorman/pkg/httpx"
	"github.com/aussiebroadwan/doorman/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X ...app.BuildVersion=...".
var BuildVersion = "v0.1.0"

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "doorman",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// OpenStore opens the configured driver and applies pending migrations.
func OpenStore(cfg Config, logger *slog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Database.Driver {
	case DriverPostgres:
		st, err = postgres.NewStore(cfg.Database.URL, postgres.PoolConfig{})
	default:
		if dir := filepath.Dir(cfg.Database.File); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.Database.File)
		st, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	logger.Info("database migrations applied successfully", "driver", cfg.Database.Driver)
	return st, nil
}

// Services is the engine wired to one store. The CLI uses it without HTTP.
type Services struct {
	Tokens       *service.TokenService
	Auth         *service.AuthService
	Sessions     *service.SessionService
	Roles        *service.RolesService
	Audit        *service.AuditService
	Housekeeping *service.HousekeepingService
}

// NewServices builds every service over st. m may be nil.
func NewServices(cfg Config, st store.Store, logger *slog.Logger, m *metrics.Metrics) (*Services, error) {
	accessSecret, err := secret(cfg.Tokens.AccessSecret, "AUTH_ACCESS_SECRET", logger)
	if err != nil {
		return nil, err
	}
	refreshSecret, err := secret(cfg.Tokens.RefreshSecret, "AUTH_REFRESH_SECRET", logger)
	if err != nil {
		return nil, err
	}

	tokens, err := service.NewTokenService(service.TokenConfig{
		Issuer:        cfg.Issuer,
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	hasher, err := newHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Database.StoreTimeout
	audit := &service.AuditService{Store: st, StoreTimeout: timeout}
	sessions := &service.SessionService{Store: st, StoreTimeout: timeout, Metrics: m}

	return &Services{
		Tokens: tokens,
		Auth: &service.AuthService{
			Store:         st,
			Tokens:        tokens,
			Hasher:        hasher,
			Audit:         audit,
			Metrics:       m,
			DefaultRole:   cfg.Tokens.DefaultRole,
			SessionTTL:    cfg.Tokens.SessionTTL,
			StoreTimeout:  timeout,
			StrictRefresh: cfg.Tokens.StrictRefresh,
		},
		Sessions:     sessions,
		Roles:        &service.RolesService{Store: st, StoreTimeout: timeout},
		Audit:        audit,
		Housekeeping: service.NewHousekeepingService(sessions, logger, cfg.Database.HousekeepingInterval),
	}, nil
}

// secret returns the configured value or a random one. Random secrets do not
// survive a restart, so every issued token becomes invalid.
func secret(value, name string, logger *slog.Logger) ([]byte, error) {
	if value != "" {
		return []byte(value), nil
	}
	b, err := cryptox.GenerateSecret(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", name, err)
	}
	logger.Warn("token secret not configured, using an ephemeral one", "env", name)
	return b, nil
}

// newHasher loads the pepper when argon2id is primary or a pepper file
// already exists, so older argon2id hashes keep verifying after a switch to bcrypt.
func newHasher(cfg PasswordConfig) (*cryptox.Hashers, error) {
	var pepper string
	_, statErr := os.Stat(cfg.PepperFile)
	if cfg.Hasher == cryptox.AlgorithmArgon2id || statErr == nil {
		p, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load pepper: %w", err)
		}
		pepper = p
	}

	h, err := cryptox.NewHashers(cfg.Hasher, cfg.BcryptCost, pepper)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}
	return h, nil
}

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	*Services

	cfg     Config
	logger  *slog.Logger
	db      store.Store
	redis   redis.UniversalClient
	metrics *metrics.Metrics

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}

	if cfg.MetricsEnabled {
		app.metrics = metrics.New(BuildVersion)
	}

	db, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	app.Services, err = NewServices(cfg, db, logger, app.metrics)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := app.initHTTP(); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	clientIP, err := httpx.NewClientIP(app.cfg.Limits.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid AUTH_TRUSTED_PROXIES: %w", err)
	}

	login := httpx.RateLimitConfig{RequestsPerWindow: app.cfg.Limits.LoginRequests, Window: app.cfg.Limits.LoginWindow}
	api := httpx.RateLimitConfig{RequestsPerWindow: app.cfg.Limits.APIRequests, Window: app.cfg.Limits.APIWindow}

	router := httpapi.NewRouter(BuildVersion, app.logger)
	router.Store = app.db
	router.Auth = app.Auth
	router.Sessions = app.Sessions
	router.Audit = app.Audit
	router.Metrics = app.metrics
	router.ClientIP = clientIP.Key

	switch app.cfg.Limits.Backend {
	case BackendRedis:
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.cfg.Redis.Addr,
			Password: app.cfg.Redis.Password,
			DB:       app.cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.redis.Ping(ctx).Err(); err != nil {
			// Limiters fail open, so an unreachable redis only disables limiting.
			app.logger.Warn("redis unreachable at startup", "addr", app.cfg.Redis.Addr, "error", err)
		}
		router.LoginLimit = httpapi.Limits{Limiter: httpx.NewRedisLimiter(app.redis, "doorman:rl:login:", login), Config: login}
		router.APILimit = httpapi.Limits{Limiter: httpx.NewRedisLimiter(app.redis, "doorman:rl:api:", api), Config: api}
	default:
		router.LoginLimit = httpapi.Limits{Limiter: httpx.NewMemoryLimiter(login), Config: login}
		router.APILimit = httpapi.Limits{Limiter: httpx.NewMemoryLimiter(api), Config: api}
	}

	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(app.cfg.Port)),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

// Run serves HTTP and runs housekeeping until ctx is cancelled or either
// fails, then shuts down and releases resources.
func (app *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Housekeeping.Run(gctx)
	})

	g.Go(func() error {
		app.logger.Info("auth service starting", "addr", app.server.Addr, "version", BuildVersion)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return app.shutdownServer()
	})

	err := g.Wait()
	return errors.Join(err, app.Close())
}

// shutdownServer gives outstanding requests the grace period to complete.
func (app *Application) shutdownServer() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Close releases the store and the redis client.
func (app *Application) Close() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	app.logger.Info("auth service stopped")
	return errors.Join(errs...)
}
