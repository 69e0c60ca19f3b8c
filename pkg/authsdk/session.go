package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// expiryBuffer refreshes the access token slightly before it actually expires.
const expiryBuffer = 30 * time.Second

// Session represents an authenticated user with automatic access token refresh.
// A request rejected with token_expired is retried once after a refresh.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	user         UserProfile
}

func newSession(client *SDKClient, login *LoginResponse) *Session {
	return &Session{
		client:       client,
		accessToken:  login.AccessToken,
		refreshToken: login.RefreshToken,
		expiresAt:    time.Now().Add(time.Duration(login.ExpiresIn)*time.Second - expiryBuffer),
		user:         login.User,
	}
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the refresh token. It does not change over the session's life.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// User returns the profile received at login. It is empty for sessions built
// with NewSessionFromTokens.
func (s *Session) User() UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// HasRole reports whether the login profile lists role.
func (s *Session) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.user.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Refresh forces a new access token.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return errors.New("access token expired and no refresh token available")
	}

	resp, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	s.accessToken = resp.AccessToken
	s.expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - expiryBuffer)
	return nil
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed)
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// doAuth performs an authenticated request and decodes the response into target.
func (s *Session) doAuth(ctx context.Context, method, path string, payload, target any, expectedStatus int) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}

	resp, err := s.client.doJSON(ctx, method, path, token, payload)
	if err != nil {
		return err
	}
	err = decodeJSON(resp, target, expectedStatus)
	if !errors.Is(err, ErrTokenExpired) {
		return err
	}

	// The server clock disagrees with ours; refresh and retry once.
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	resp, err = s.client.doJSON(ctx, method, path, s.AccessToken(), payload)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, expectedStatus)
}

// Me returns the current user.
func (s *Session) Me(ctx context.Context) (*MeResponse, error) {
	var out MeResponse
	if err := s.doAuth(ctx, http.MethodGet, "/v1/auth/me", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sessions lists the user's active sessions, newest first.
func (s *Session) Sessions(ctx context.Context) (*SessionsResponse, error) {
	var out SessionsResponse
	if err := s.doAuth(ctx, http.MethodGet, "/v1/auth/sessions", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Audit reads the audit log. Requires the admin role.
func (s *Session) Audit(ctx context.Context, q AuditQuery) (*AuditResponse, error) {
	v := url.Values{}
	if q.UserID != "" {
		v.Set("user_id", q.UserID)
	}
	if q.Event != "" {
		v.Set("event", q.Event)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/v1/auth/audit"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var out AuditResponse
	if err := s.doAuth(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout closes the server-side session. The Session must not be used afterwards.
func (s *Session) Logout(ctx context.Context) error {
	var out SuccessResponse
	return s.doAuth(ctx, http.MethodPost, "/v1/auth/logout", nil, &out, http.StatusOK)
}
