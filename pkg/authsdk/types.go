package authsdk

import "time"

// ============================================================================
// Error Response Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse is the body of every non-validation error response.
// Client code should use the APIError type from errors.go instead.
type ErrorResponse struct {
	// Error is the machine readable error code (e.g., "invalid_token")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ValidationErrorResponse is returned with 400 when request validation fails.
type ValidationErrorResponse struct {
	// Error is always "validation_error"
	Error string `json:"error"`

	// Message is a human-readable error message
	Message string `json:"error_description"`

	// Details contains field-specific validation errors (field name: error message)
	Details map[string]string `json:"details,omitempty"`
}

// ============================================================================
// Registration
// ============================================================================

// RegisterRequest is the body of POST /v1/auth/register.
type RegisterRequest struct {
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	GivenName  string  `json:"given_name"`
	FamilyName string  `json:"family_name"`
	Phone      *string `json:"phone,omitempty"`
}

// RegisterResponse is the public projection of the new account.
type RegisterResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// ============================================================================
// Login / Refresh
// ============================================================================

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserProfile is the user summary embedded in a login response.
type UserProfile struct {
	ID          string   `json:"id"`
	GivenName   string   `json:"given_name"`
	FamilyName  string   `json:"family_name"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// LoginResponse is returned from a successful login.
type LoginResponse struct {
	// AccessToken authenticates API requests as a Bearer token
	AccessToken string `json:"access_token"`

	// RefreshToken is exchanged at /v1/auth/refresh for a new access token
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	User UserProfile `json:"user"`
}

// RefreshRequest is the body of POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse carries a new access token. The refresh token is not rotated.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// SuccessResponse is returned by endpoints with no other payload (logout).
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ============================================================================
// Identity / Sessions / Audit
// ============================================================================

// MeResponse is the current user projection.
type MeResponse struct {
	ID         string   `json:"id"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Email      string   `json:"email"`
	Phone      *string  `json:"phone,omitempty"`
	Roles      []string `json:"roles"`
}

// SessionInfo describes one active session. Token material is never exposed.
type SessionInfo struct {
	ID         string    `json:"id"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent,omitempty"`
	DeviceType string    `json:"device_type"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Current    bool      `json:"current"`
}

type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// AuditRecord is one entry of the authentication audit log.
type AuditRecord struct {
	ID        string            `json:"id"`
	UserID    *string           `json:"user_id,omitempty"`
	Event     string            `json:"event"`
	Outcome   string            `json:"outcome"`
	IPAddress string            `json:"ip_address"`
	UserAgent *string           `json:"user_agent,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// AuditQuery filters GET /v1/auth/audit. Zero fields are omitted.
type AuditQuery struct {
	UserID string
	Event  string
	Limit  int
}

type AuditResponse struct {
	Records []AuditRecord `json:"records"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`
}
