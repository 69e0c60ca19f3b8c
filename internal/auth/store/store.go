package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories so a transaction scoped Store
// hands out the same repos bound to the transaction.
type Store interface {
	Users() Users
	Roles() Roles
	Sessions() Sessions
	Audit() AuditLog

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. It commits when fn returns nil
	// and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying connection pool.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Users is the credential half of the credential store.
type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by normalised email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// TouchLastAccess bumps updated_at for the user.
	TouchLastAccess(ctx context.Context, userID string, at time.Time) error
}

// Roles holds role and permission reference data and their assignments.
type Roles interface {
	// GetRoleByName returns a role by its unique name.
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)

	// CreateRole inserts a role. Returns ErrAlreadyExists on a duplicate name.
	CreateRole(ctx context.Context, r domain.Role) error

	// ListRoles returns every role ordered by name.
	ListRoles(ctx context.Context) ([]domain.Role, error)

	// ListUserRoles returns the roles assigned to a user ordered by name.
	ListUserRoles(ctx context.Context, userID string) ([]domain.Role, error)

	// AssignRole links a user to a role. Assigning twice is a no-op.
	AssignRole(ctx context.Context, userID, roleID string, at time.Time) error

	// UnassignRole removes the link. Missing links are ignored.
	UnassignRole(ctx context.Context, userID, roleID string) error

	// GetPermissionByName returns a permission by its unique name.
	GetPermissionByName(ctx context.Context, name string) (domain.Permission, error)

	// CreatePermission inserts a permission. Returns ErrAlreadyExists on a duplicate name.
	CreatePermission(ctx context.Context, p domain.Permission) error

	// GrantPermission links a permission to a role. Granting twice is a no-op.
	GrantPermission(ctx context.Context, roleID, permissionID string) error

	// RevokePermission removes the link. Missing links are ignored.
	RevokePermission(ctx context.Context, roleID, permissionID string) error

	// ListUserPermissions returns the distinct permissions reachable through
	// the user's roles, ordered by name.
	ListUserPermissions(ctx context.Context, userID string) ([]domain.Permission, error)
}

// Sessions is the session store. Token columns hold fingerprints.
type Sessions interface {
	// CreateSession inserts a new session row.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetActiveSessionByAccessHash returns the active session for an access token fingerprint.
	GetActiveSessionByAccessHash(ctx context.Context, hash string) (domain.Session, error)

	// GetActiveSessionByRefreshHash returns the active session for a refresh token fingerprint.
	GetActiveSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error)

	// RotateAccessToken points an active session at a new access token and expiry.
	RotateAccessToken(ctx context.Context, sessionID, accessHash string, expiresAt time.Time) error

	// DeactivateSessionByAccessHash marks the matching session inactive.
	// A missing or already inactive session is not an error.
	DeactivateSessionByAccessHash(ctx context.Context, hash string) error

	// DeactivateUserSessions marks every active session of a user inactive.
	DeactivateUserSessions(ctx context.Context, userID string) (int64, error)

	// DeactivateExpiredSessions marks active sessions with expires_at before now inactive.
	DeactivateExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// ListActiveUserSessions returns a user's active sessions, newest first.
	ListActiveUserSessions(ctx context.Context, userID string) ([]domain.Session, error)
}

// AuditFilter narrows ListAuditRecords. Zero fields match everything.
type AuditFilter struct {
	UserID string
	Event  domain.AuditEvent
	Limit  int
}

// AuditLog is append-only.
type AuditLog interface {
	// AppendAuditRecord writes one record.
	AppendAuditRecord(ctx context.Context, r domain.AuditRecord) error

	// ListAuditRecords returns records newest first.
	ListAuditRecords(ctx context.Context, f AuditFilter) ([]domain.AuditRecord, error)
}
