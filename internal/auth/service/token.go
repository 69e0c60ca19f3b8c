package service

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/pkg/jwtx"
)

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Issuer        string
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration // default 1h
	RefreshTTL    time.Duration // default 7d

	// Now overrides the clock, used by tests.
	Now func() time.Time
}

// TokenService signs and verifies access and refresh tokens. The two token
// classes use different secrets and lifetimes.
type TokenService struct {
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        clock

	accessSigner    *jwtx.HMACSigner
	accessVerifier  *jwtx.HMACVerifier
	refreshSigner   *jwtx.HMACSigner
	refreshVerifier *jwtx.HMACVerifier
}

// NewTokenService validates cfg and builds the signers.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token service: access and refresh secrets are required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("token service: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = jwtx.DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = jwtx.DefaultRefreshTokenTTL
	}

	s := &TokenService{
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}

	var err error
	if s.accessSigner, err = jwtx.NewHMACSigner(cfg.AccessSecret); err != nil {
		return nil, err
	}
	if s.refreshSigner, err = jwtx.NewHMACSigner(cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if s.accessVerifier, err = jwtx.NewHMACVerifier(cfg.AccessSecret, cfg.Issuer); err != nil {
		return nil, err
	}
	if s.refreshVerifier, err = jwtx.NewHMACVerifier(cfg.RefreshSecret, cfg.Issuer); err != nil {
		return nil, err
	}
	s.accessVerifier.Now = s.now.now
	s.refreshVerifier.Now = s.now.now

	return s, nil
}

func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs {sub, email, roles} with the access secret.
func (s *TokenService) IssueAccessToken(c domain.AccessClaims) (string, error) {
	claims := jwtx.NewAccessClaims(s.issuer, c.UserID, c.Email, c.Roles, s.now.now(), s.accessTTL)
	tok, err := s.accessSigner.Sign(&claims)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return tok, nil
}

// IssueRefreshToken signs {sub} with the refresh secret.
func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	claims := jwtx.NewRefreshClaims(s.issuer, userID, s.now.now(), s.refreshTTL)
	tok, err := s.refreshSigner.Sign(&claims)
	if err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}
	return tok, nil
}

// VerifyAccessToken returns the claims of a valid access token. Only
// ErrTokenExpired and ErrTokenInvalid are returned.
func (s *TokenService) VerifyAccessToken(token string) (*jwtx.AccessClaims, error) {
	c, err := s.accessVerifier.VerifyAccess(token)
	if err != nil {
		return nil, tokenError(err)
	}
	return c, nil
}

// VerifyRefreshToken is VerifyAccessToken for refresh tokens.
func (s *TokenService) VerifyRefreshToken(token string) (*jwtx.RefreshClaims, error) {
	c, err := s.refreshVerifier.VerifyRefresh(token)
	if err != nil {
		return nil, tokenError(err)
	}
	return c, nil
}

// DecodeUnsafe returns token claims without any verification. For
// inspection only.
func (s *TokenService) DecodeUnsafe(token string) (map[string]any, error) {
	m, err := jwtx.DecodeUnsafe(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return m, nil
}

// tokenError folds every jwtx failure into the two token failure kinds. The
// cause is kept as text only so callers cannot match on it.
func tokenError(err error) error {
	if errors.Is(err, jwtx.ErrExpired) {
		return ErrTokenExpired
	}
	return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
}
