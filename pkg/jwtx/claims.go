package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Values of the "use" claim. Access and refresh tokens are signed with
// different secrets, the claim additionally stops one being replayed as the
// other if the secrets are ever configured the same.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// AccessClaims are carried by short lived access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims

	Email string   `json:"email"`
	Roles []string `json:"roles"`
	Use   string   `json:"use"`
}

func (c *AccessClaims) TokenUse() string { return c.Use }

// RefreshClaims only identify the user (sub).
type RefreshClaims struct {
	jwt.RegisteredClaims

	Use string `json:"use"`
}

func (c *RefreshClaims) TokenUse() string { return c.Use }

// NewAccessClaims builds access claims valid from now for ttl.
func NewAccessClaims(issuer, userID, email string, roles []string, now time.Time, ttl time.Duration) AccessClaims {
	if roles == nil {
		roles = []string{}
	}
	return AccessClaims{
		RegisteredClaims: registered(issuer, userID, now, ttl),
		Email:            email,
		Roles:            roles,
		Use:              UseAccess,
	}
}

// NewRefreshClaims builds refresh claims valid from now for ttl.
func NewRefreshClaims(issuer, userID string, now time.Time, ttl time.Duration) RefreshClaims {
	return RefreshClaims{
		RegisteredClaims: registered(issuer, userID, now, ttl),
		Use:              UseRefresh,
	}
}

func registered(issuer, subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim. Two tokens
// minted for the same user in the same second still differ because of it.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
