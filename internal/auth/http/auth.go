package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/service"
	"github.com/aussiebroadwan/doorman/pkg/authsdk"
	"github.com/aussiebroadwan/doorman/pkg/httpx"
)

// AuthHandler adapts the authentication engine to JSON over HTTP.
type AuthHandler struct {
	Auth      *service.AuthService
	AccessTTL time.Duration
	ClientIP  httpx.KeyExtractor
}

func (h *AuthHandler) clientIP(r *http.Request) string {
	if h.ClientIP == nil {
		return httpx.IPKeyExtractor(r)
	}
	return h.ClientIP(r)
}

// HandleRegister creates an account.
//
//	@Summary		Register a new account
//	@Description	Creates a user with the default role. The password is hashed before it is stored.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest			true	"Account details"
//	@Success		201		{object}	authsdk.RegisterResponse		"Created account"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse	"Validation failed or email already registered"
//	@Failure		503		{object}	authsdk.ErrorResponse			"Store unavailable"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	// 1. Parse and validate the body
	var req authsdk.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.Validate(); errs != nil {
		writeValidationError(w, errs)
		return
	}

	// 2. Register
	user, err := h.Auth.Register(r.Context(), service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		GivenName:  strings.TrimSpace(req.GivenName),
		FamilyName: strings.TrimSpace(req.FamilyName),
		Phone:      req.Phone,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.RegisterResponse{
		ID:         user.ID,
		Email:      user.Email,
		GivenName:  user.GivenName,
		FamilyName: user.FamilyName,
	})
}

// HandleLogin exchanges credentials for a token pair.
//
//	@Summary		Log in
//	@Description	Verifies credentials, opens a session and returns an access and refresh token. Rate limited per client IP.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Token pair and user profile"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_credentials or account_inactive"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Failure		503		{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.Validate(); errs != nil {
		writeValidationError(w, errs)
		return
	}

	res, err := h.Auth.Login(r.Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: h.clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(h.AccessTTL.Seconds()),
		User:         profile(res.User),
	})
}

// HandleLogout closes the caller's session.
//
//	@Summary		Log out
//	@Description	Deactivates the session bound to the presented access token. Repeating the call is harmless.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SuccessResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"no bearer token"
//	@Failure		503	{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := httpx.TokenFromContext(r.Context())
	if err := h.Auth.Logout(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.SuccessResponse{Success: true})
}

// HandleRefresh mints a new access token.
//
//	@Summary		Refresh the access token
//	@Description	Returns a new access token carrying the user's current roles. The refresh token is not rotated.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.RefreshResponse
//	@Failure		400		{object}	authsdk.ValidationErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"token_expired, invalid_token or user_not_found"
//	@Failure		503		{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.Validate(); errs != nil {
		writeValidationError(w, errs)
		return
	}

	res, err := h.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeRefreshError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RefreshResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.AccessTTL.Seconds()),
	})
}

// HandleMe returns the authenticated user.
//
//	@Summary		Current user
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Failure		404	{object}	authsdk.ErrorResponse	"user_not_found"
//	@Failure		503	{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	me, err := h.Auth.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
		ID:         me.ID,
		GivenName:  me.GivenName,
		FamilyName: me.FamilyName,
		Email:      me.Email,
		Phone:      me.Phone,
		Roles:      nonNil(me.Roles),
	})
}

func profile(p domain.Profile) authsdk.UserProfile {
	return authsdk.UserProfile{
		ID:          p.ID,
		GivenName:   p.GivenName,
		FamilyName:  p.FamilyName,
		Email:       p.Email,
		Roles:       nonNil(p.Roles),
		Permissions: nonNil(p.Permissions),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
