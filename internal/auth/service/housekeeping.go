package service

import (
	"context"
	"log/slog"
	"time"
)

// DefaultHousekeepingInterval is how often expired sessions are swept.
const DefaultHousekeepingInterval = 15 * time.Minute

// HousekeepingService periodically deactivates expired sessions so the
// active flag stays the single source of truth for session validity.
type HousekeepingService struct {
	Sessions *SessionService
	Logger   *slog.Logger
	Interval time.Duration
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to DefaultHousekeepingInterval.
func NewHousekeepingService(sessions *SessionService, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	return &HousekeepingService{
		Sessions: sessions,
		Logger:   logger,
		Interval: interval,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// Sweep failures are logged and the loop carries on.
func (s *HousekeepingService) Run(ctx context.Context) error {
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
	defer s.Logger.Info("housekeeping service stopped")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cleanup(ctx)
	for {
		select {
		case <-ticker.C:
			s.cleanup(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *HousekeepingService) cleanup(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	n, err := s.Sessions.CleanExpiredSessions(ctx)
	if err != nil {
		s.Logger.Error("failed to deactivate expired sessions", "error", err)
		return
	}
	s.Logger.Debug("housekeeping cleanup completed", "sessions_deactivated", n)
}
