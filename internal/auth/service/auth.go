package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
	"github.com/aussiebroadwan/doorman/pkg/cryptox"
	"github.com/aussiebroadwan/doorman/pkg/idx"
	"github.com/aussiebroadwan/doorman/pkg/jwtx"
	"github.com/aussiebroadwan/doorman/pkg/slogx"
)

// Defaults applied when the corresponding AuthService field is zero.
const (
	DefaultSessionTTL = time.Hour
	DefaultRoleName   = "customer"
)

// Outcome labels reported to the Observer.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// RegisterInput is an already shape-validated registration request.
type RegisterInput struct {
	Email      string
	Password   string
	GivenName  string
	FamilyName string
	Phone      *string
}

// LoginInput carries credentials plus the origin of the request.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// AuthService is the authentication and session-lifecycle engine.
type AuthService struct {
	Store  store.Store
	Tokens *TokenService
	Hasher cryptox.PasswordHasher
	Audit  *AuditService

	// Metrics may be nil.
	Metrics Observer

	DefaultRole  string
	SessionTTL   time.Duration
	StoreTimeout time.Duration

	// StrictRefresh requires a refresh token to belong to a session that is
	// still active, so logout also ends the ability to refresh.
	StrictRefresh bool

	// Now overrides the clock, used by tests.
	Now func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func (s *AuthService) now() time.Time { return clock(s.Now).now() }

func (s *AuthService) sessionTTL() time.Duration {
	if s.SessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return s.SessionTTL
}

func (s *AuthService) defaultRole() string {
	if s.DefaultRole == "" {
		return DefaultRoleName
	}
	return s.DefaultRole
}

// Register creates an active, unverified user holding the default role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.PublicUser, error) {
	const op = "register"
	l := slogx.FromContext(ctx)
	obs := observer(s.Metrics)

	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		obs.ObserveRegistration(OutcomeFailure)
		return domain.PublicUser{}, fmt.Errorf("%s: %w: email and password are required", op, ErrValidationFailed)
	}

	// 1. Reject emails that are already taken
	_, err := call(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByEmail(ctx, email)
	})
	switch {
	case err == nil:
		obs.ObserveRegistration(OutcomeFailure)
		return domain.PublicUser{}, ErrEmailAlreadyRegistered
	case !errors.Is(err, store.ErrNotFound):
		return domain.PublicUser{}, unavailable(op, err)
	}

	// 2. Hash the password
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("%s: hash password: %w", op, err)
	}

	now := s.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: hash,
		GivenName:    in.GivenName,
		FamilyName:   in.FamilyName,
		Phone:        in.Phone,
		Status:       domain.UserStatusActive,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 3. Insert the user and assign the default role together
	err = exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().CreateUser(ctx, user); err != nil {
				return err
			}
			role, err := tx.Roles().GetRoleByName(ctx, s.defaultRole())
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("default role %q is missing: %w", s.defaultRole(), err)
				}
				return err
			}
			return tx.Roles().AssignRole(ctx, user.ID, role.ID, now)
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent registration of the same email.
			obs.ObserveRegistration(OutcomeFailure)
			return domain.PublicUser{}, ErrEmailAlreadyRegistered
		}
		l.Error("registration failed", "error", err)
		return domain.PublicUser{}, unavailable(op, err)
	}

	obs.ObserveRegistration(OutcomeSuccess)
	l.Info("user registered", "user_id", user.ID)
	return user.Public(), nil
}

// Login checks credentials, mints a token pair and opens a session. Every
// attempt is audited.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (domain.LoginResult, error) {
	const op = "login"
	l := slogx.FromContext(ctx)
	obs := observer(s.Metrics)

	email := domain.NormalizeEmail(in.Email)

	// 1. Lookup the account
	user, err := call(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByEmail(ctx, email)
	})
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, unavailable(op, err)
		}
		// Spend the same time as a real verification.
		_ = s.Hasher.Verify(in.Password, s.dummy())
		s.failedLogin(ctx, in, nil, email, domain.ReasonUserNotFound)
		return domain.LoginResult{}, ErrInvalidCredentials
	}

	// 2. Only active accounts may log in
	if !user.IsActive() {
		s.failedLogin(ctx, in, &user.ID, email, domain.ReasonAccountInactive)
		return domain.LoginResult{}, ErrAccountInactive
	}

	// 3. Verify the password
	if err := s.Hasher.Verify(in.Password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash could not be verified", "user_id", user.ID, "error", err)
		}
		s.failedLogin(ctx, in, &user.ID, email, domain.ReasonWrongPassword)
		return domain.LoginResult{}, ErrInvalidCredentials
	}

	// 4. Load roles and the permissions they grant
	roles, perms, err := s.rolesAndPermissions(ctx, user.ID)
	if err != nil {
		return domain.LoginResult{}, unavailable(op, err)
	}

	// 5. Mint the token pair
	access, err := s.Tokens.IssueAccessToken(domain.AccessClaims{UserID: user.ID, Email: user.Email, Roles: roles})
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	refresh, err := s.Tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	// 6. Persist the session. Without it logout could not revoke the pair.
	now := s.now()
	session := domain.Session{
		ID:               idx.NewAt(now).String(),
		UserID:           user.ID,
		AccessTokenHash:  cryptox.FingerprintToken(access),
		RefreshTokenHash: cryptox.FingerprintToken(refresh),
		IPAddress:        in.IPAddress,
		UserAgent:        in.UserAgent,
		DeviceType:       domain.DefaultDevice,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.sessionTTL()),
		Active:           true,
	}
	err = exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Sessions().CreateSession(ctx, session)
	})
	if err != nil {
		l.Error("failed to persist session", "user_id", user.ID, "error", err)
		return domain.LoginResult{}, unavailable(op, err)
	}

	// 7. Audit the success (best-effort)
	s.record(ctx, domain.AuditRecord{
		UserID:    &user.ID,
		Event:     domain.AuditEventLogin,
		Outcome:   domain.AuditOutcomeSuccess,
		IPAddress: in.IPAddress,
		UserAgent: optional(in.UserAgent),
		Details:   map[string]string{"device": domain.DefaultDevice},
	})

	// 8. Bump last access (best-effort)
	err = exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Users().TouchLastAccess(ctx, user.ID, now)
	})
	if err != nil {
		obs.ObserveSideEffectFailure(StepTouchAccess)
		l.Warn("failed to update last access", "user_id", user.ID, "error", err)
	}

	obs.ObserveLogin(OutcomeSuccess, "")
	l.Info("user logged in", "user_id", user.ID, "session_id", session.ID)

	// 9. Return the pair and profile
	return domain.LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User: domain.Profile{
			ID:          user.ID,
			GivenName:   user.GivenName,
			FamilyName:  user.FamilyName,
			Email:       user.Email,
			Roles:       roles,
			Permissions: perms,
		},
	}, nil
}

// Logout deactivates the session bound to accessToken. Unknown or already
// inactive sessions are not an error.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return ErrTokenInvalid
	}

	err := exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Sessions().DeactivateSessionByAccessHash(ctx, cryptox.FingerprintToken(accessToken))
	})
	if err != nil {
		return unavailable("logout", err)
	}
	return nil
}

// Refresh mints a new access token from a refresh token. The refresh token
// is not rotated and stays usable until it expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.RefreshResult, error) {
	result, err := s.refresh(ctx, refreshToken)
	if err != nil {
		observer(s.Metrics).ObserveRefresh(OutcomeFailure)
		return domain.RefreshResult{}, err
	}
	observer(s.Metrics).ObserveRefresh(OutcomeSuccess)
	return result, nil
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string) (domain.RefreshResult, error) {
	const op = "refresh"
	l := slogx.FromContext(ctx)

	// 1. Verify the refresh token
	claims, err := s.Tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return domain.RefreshResult{}, err
	}
	userID := claims.Subject

	// 2. Reload the user
	user, err := call(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByID(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RefreshResult{}, ErrUserNotFound
		}
		return domain.RefreshResult{}, unavailable(op, err)
	}

	// 3. Find the session it was issued with
	session, err := call(ctx, s.StoreTimeout, func(ctx context.Context) (domain.Session, error) {
		return s.Store.Sessions().GetActiveSessionByRefreshHash(ctx, cryptox.FingerprintToken(refreshToken))
	})
	hasSession := err == nil && session.UserID == userID
	switch {
	case err != nil && !errors.Is(err, store.ErrNotFound):
		if s.StrictRefresh {
			return domain.RefreshResult{}, unavailable(op, err)
		}
		l.Warn("refresh session lookup failed", "user_id", userID, "error", err)
	case s.StrictRefresh && !hasSession:
		return domain.RefreshResult{}, fmt.Errorf("%w: session is no longer active", ErrTokenInvalid)
	}

	roles, err := call(ctx, s.StoreTimeout, func(ctx context.Context) ([]domain.Role, error) {
		return s.Store.Roles().ListUserRoles(ctx, user.ID)
	})
	if err != nil {
		return domain.RefreshResult{}, unavailable(op, err)
	}

	// 4. Mint a fresh access token with the roles held now
	access, err := s.Tokens.IssueAccessToken(domain.AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Roles:  domain.RoleNames(roles),
	})
	if err != nil {
		return domain.RefreshResult{}, fmt.Errorf("%s: %w", op, err)
	}

	// 5. Point the session at the new access token
	if hasSession {
		err := exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
			return s.Store.Sessions().RotateAccessToken(ctx, session.ID, cryptox.FingerprintToken(access), s.now().Add(s.sessionTTL()))
		})
		if err != nil {
			if s.StrictRefresh {
				if errors.Is(err, store.ErrNotFound) {
					return domain.RefreshResult{}, fmt.Errorf("%w: session is no longer active", ErrTokenInvalid)
				}
				return domain.RefreshResult{}, unavailable(op, err)
			}
			observer(s.Metrics).ObserveSideEffectFailure(StepRotateSession)
			l.Warn("failed to rotate session access token", "session_id", session.ID, "error", err)
		}
	}

	return domain.RefreshResult{AccessToken: access}, nil
}

// Me returns the current projection of an authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (domain.Identity, error) {
	const op = "me"

	user, err := call(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByID(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Identity{}, ErrUserNotFound
		}
		return domain.Identity{}, unavailable(op, err)
	}

	roles, err := call(ctx, s.StoreTimeout, func(ctx context.Context) ([]domain.Role, error) {
		return s.Store.Roles().ListUserRoles(ctx, user.ID)
	})
	if err != nil {
		return domain.Identity{}, unavailable(op, err)
	}

	return domain.Identity{
		ID:         user.ID,
		GivenName:  user.GivenName,
		FamilyName: user.FamilyName,
		Email:      user.Email,
		Phone:      user.Phone,
		Roles:      domain.RoleNames(roles),
	}, nil
}

// Authenticate accepts an access token only if its signature and expiry are
// valid and the session it belongs to is still active.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*jwtx.AccessClaims, error) {
	claims, err := s.Tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	session, err := call(ctx, s.StoreTimeout, func(ctx context.Context) (domain.Session, error) {
		return s.Store.Sessions().GetActiveSessionByAccessHash(ctx, cryptox.FingerprintToken(accessToken))
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: session is no longer active", ErrTokenInvalid)
		}
		return nil, unavailable("authenticate", err)
	}
	if session.UserID != claims.Subject {
		return nil, fmt.Errorf("%w: session belongs to another user", ErrTokenInvalid)
	}
	return claims, nil
}

func (s *AuthService) rolesAndPermissions(ctx context.Context, userID string) ([]string, []string, error) {
	roles, err := call(ctx, s.StoreTimeout, func(ctx context.Context) ([]domain.Role, error) {
		return s.Store.Roles().ListUserRoles(ctx, userID)
	})
	if err != nil {
		return nil, nil, err
	}
	perms, err := call(ctx, s.StoreTimeout, func(ctx context.Context) ([]domain.Permission, error) {
		return s.Store.Roles().ListUserPermissions(ctx, userID)
	})
	if err != nil {
		return nil, nil, err
	}
	return domain.RoleNames(roles), domain.PermissionNames(perms), nil
}

func (s *AuthService) failedLogin(ctx context.Context, in LoginInput, userID *string, email, reason string) {
	observer(s.Metrics).ObserveLogin(OutcomeFailure, reason)
	slogx.FromContext(ctx).Info("login failed", "reason", reason, "ip", in.IPAddress)

	s.record(ctx, domain.AuditRecord{
		UserID:    userID,
		Event:     domain.AuditEventFailedLogin,
		Outcome:   domain.AuditOutcomeFailure,
		IPAddress: in.IPAddress,
		UserAgent: optional(in.UserAgent),
		Details:   map[string]string{"email": email, "reason": reason},
	})
}

// record writes an audit row, logging instead of failing.
func (s *AuthService) record(ctx context.Context, r domain.AuditRecord) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, r); err != nil {
		observer(s.Metrics).ObserveSideEffectFailure(StepAudit)
		slogx.FromContext(ctx).Warn("failed to write audit record", "event", r.Event, "error", err)
	}
}

// dummy returns a hash in the primary format used to equalise the timing of
// logins for unknown emails.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash("doorman-timing-equaliser")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
