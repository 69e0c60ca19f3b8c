package http

import (
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/doorman/api/auth" // Swagger docs
	"github.com/aussiebroadwan/doorman/internal/auth/metrics"
	"github.com/aussiebroadwan/doorman/internal/auth/service"
	"github.com/aussiebroadwan/doorman/pkg/httpx"
	"github.com/aussiebroadwan/doorman/pkg/slogx"
)

// AdminRole may read the audit log over HTTP.
const AdminRole = "admin"

// Limits pairs a limiter with the budget it enforces, so the middleware can
// report it in headers.
type Limits struct {
	Limiter httpx.Limiter
	Config  httpx.RateLimitConfig
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Store    Pinger
	Auth     *service.AuthService
	Sessions *service.SessionService
	Audit    *service.AuditService

	// Metrics is optional; nil disables instrumentation and /metrics.
	Metrics *metrics.Metrics

	LoginLimit Limits
	APILimit   Limits

	// ClientIP keys rate limits and audit records. Defaults to the socket peer.
	ClientIP httpx.KeyExtractor
}

func NewRouter(buildVersion string, logger *slog.Logger) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}
}

// ApplyRoutes registers every route. Call it once after the services are set.
func (r *Router) ApplyRoutes() {
	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	if r.ClientIP == nil {
		r.ClientIP = httpx.IPKeyExtractor
	}
	if r.APILimit.Limiter != nil {
		r.middlewares = append(r.middlewares, httpx.RateLimitMiddleware(r.APILimit.Limiter, r.APILimit.Config, r.ClientIP))
	}

	r.registerAuth()
	r.registerSessions()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("GET /swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Doorman Authentication Service API
//	@version		0.1.0
//	@description	Registration, login, logout and token refresh for end users.
//	@description
//	@description				Access and refresh tokens are HS256 JWTs signed with separate secrets.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/doorman
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h under pattern with per-route instrumentation outermost.
func (r *Router) handle(pattern string, h http.Handler, mws ...httpx.Middleware) {
	mws = append([]httpx.Middleware{r.Metrics.Instrument(pattern)}, mws...)
	r.Mux.Handle(pattern, httpx.Chain(h, mws...))
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.Auth, writeError)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Auth: r.Auth, AccessTTL: r.Auth.Tokens.AccessTTL(), ClientIP: r.ClientIP}

	r.handle("POST /v1/auth/register", http.HandlerFunc(h.HandleRegister))

	// POST /login - strict rate limit by IP (credential checks)
	var loginMws []httpx.Middleware
	if r.LoginLimit.Limiter != nil {
		loginMws = append(loginMws, httpx.RateLimitMiddleware(r.LoginLimit.Limiter, r.LoginLimit.Config, r.ClientIP))
	}
	r.handle("POST /v1/auth/login", http.HandlerFunc(h.HandleLogin), loginMws...)

	r.handle("POST /v1/auth/refresh", http.HandlerFunc(h.HandleRefresh))
	// Logout only needs a token; the session may already be gone.
	r.handle("POST /v1/auth/logout", http.HandlerFunc(h.HandleLogout), httpx.RequireBearer(writeError))
	r.handle("GET /v1/auth/me", http.HandlerFunc(h.HandleMe), r.authn())
}

func (r *Router) registerSessions() {
	r.handle("GET /v1/auth/sessions", &SessionsHandler{Sessions: r.Sessions}, r.authn())
}

func (r *Router) registerAdmin() {
	r.handle("GET /v1/auth/audit", &AuditHandler{Audit: r.Audit},
		r.authn(),
		httpx.RequireAnyRole(AdminRole),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.Store))
	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}
}
