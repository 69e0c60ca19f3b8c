package domain

import "time"

// DefaultDevice is the device class recorded for browser logins.
const DefaultDevice = "web"

// Session is one issued token pair. Tokens are stored as fingerprints only.
type Session struct {
	ID               string
	UserID           string
	AccessTokenHash  string
	RefreshTokenHash string
	IPAddress        string
	UserAgent        string
	DeviceType       string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	Active           bool
}

// Expired reports whether the session expiry has passed at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
