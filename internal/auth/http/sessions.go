package http

import (
	"net/http"

	"github.com/aussiebroadwan/doorman/internal/auth/service"
	"github.com/aussiebroadwan/doorman/pkg/authsdk"
	"github.com/aussiebroadwan/doorman/pkg/cryptox"
	"github.com/aussiebroadwan/doorman/pkg/httpx"
)

type SessionsHandler struct {
	Sessions *service.SessionService
}

// ServeHTTP lists the caller's active sessions.
//
//	@Summary		List active sessions
//	@Description	Returns the caller's active sessions, newest first. The session of the presented token is flagged current.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SessionsResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Failure		503	{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/sessions [get].
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	token, _ := httpx.TokenFromContext(ctx)

	sessions, err := h.Sessions.ListActiveSessions(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := authsdk.SessionsResponse{Sessions: make([]authsdk.SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, authsdk.SessionInfo{
			ID:         s.ID,
			IPAddress:  s.IPAddress,
			UserAgent:  s.UserAgent,
			DeviceType: s.DeviceType,
			CreatedAt:  s.CreatedAt,
			ExpiresAt:  s.ExpiresAt,
			Current:    cryptox.FingerprintMatches(token, s.AccessTokenHash),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
