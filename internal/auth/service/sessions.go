package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
	"github.com/aussiebroadwan/doorman/pkg/slogx"
)

// SessionService holds the bulk session operations.
type SessionService struct {
	Store        store.Store
	StoreTimeout time.Duration
	Metrics      Observer
	Now          func() time.Time
}

// CleanExpiredSessions deactivates every active session whose expiry has
// passed and returns how many were touched. Unexpired sessions are left alone.
func (s *SessionService) CleanExpiredSessions(ctx context.Context) (int64, error) {
	now := clock(s.Now).now()

	n, err := call(ctx, s.StoreTimeout, func(ctx context.Context) (int64, error) {
		return s.Store.Sessions().DeactivateExpiredSessions(ctx, now)
	})
	if err != nil {
		return 0, unavailable("clean expired sessions", err)
	}

	observer(s.Metrics).ObserveSessionsExpired(n)
	if n > 0 {
		slogx.FromContext(ctx).Info("expired sessions deactivated", "count", n)
	}
	return n, nil
}

// DeactivateAllSessions force-deactivates every active session of a user.
func (s *SessionService) DeactivateAllSessions(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrValidationFailed
	}

	n, err := call(ctx, s.StoreTimeout, func(ctx context.Context) (int64, error) {
		return s.Store.Sessions().DeactivateUserSessions(ctx, userID)
	})
	if err != nil {
		return 0, unavailable("deactivate all sessions", err)
	}

	slogx.FromContext(ctx).Info("user sessions deactivated", "user_id", userID, "count", n)
	return n, nil
}

// ListActiveSessions returns the user's active sessions, newest first.
func (s *SessionService) ListActiveSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := call(ctx, s.StoreTimeout, func(ctx context.Context) ([]domain.Session, error) {
		return s.Store.Sessions().ListActiveUserSessions(ctx, userID)
	})
	if err != nil {
		return nil, unavailable("list active sessions", err)
	}
	return sessions, nil
}
