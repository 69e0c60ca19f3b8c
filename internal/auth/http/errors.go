package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/doorman/internal/auth/service"
	"github.com/aussiebroadwan/doorman/pkg/authsdk"
	"github.com/aussiebroadwan/doorman/pkg/httpx"
	"github.com/aussiebroadwan/doorman/pkg/slogx"
)

// apiError maps an engine failure to its wire error. Unknown errors become
// server_error.
func apiError(err error) *authsdk.APIError {
	switch {
	case errors.Is(err, service.ErrValidationFailed):
		return authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeValidation, "the request failed validation")
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return authsdk.ErrEmailAlreadyRegistered
	case errors.Is(err, service.ErrInvalidCredentials):
		return authsdk.ErrInvalidCredentials
	case errors.Is(err, service.ErrAccountInactive):
		return authsdk.ErrAccountInactive
	case errors.Is(err, service.ErrTokenExpired):
		return authsdk.ErrTokenExpired
	case errors.Is(err, service.ErrTokenInvalid), errors.Is(err, httpx.ErrMissingBearer):
		return authsdk.ErrInvalidToken
	case errors.Is(err, service.ErrUserNotFound):
		return authsdk.ErrUserNotFound
	case errors.Is(err, service.ErrStorageUnavailable):
		return authsdk.ErrServiceUnavailable
	default:
		return authsdk.ErrServerError
	}
}

// writeError renders err and logs anything that is not a client mistake.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
	}
	apiErr.WriteError(w)
}

// writeRefreshError reports a vanished user as an authentication failure:
// the refresh token no longer identifies anyone.
func writeRefreshError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrUserNotFound) {
		authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeUserNotFound, "the token subject no longer exists").WriteError(w)
		return
	}
	writeError(w, r, err)
}

func writeValidationError(w http.ResponseWriter, fields map[string]string) {
	(&authsdk.ValidationError{
		Message: "validation failed for some fields",
		Fields:  fields,
	}).WriteError(w)
}

// decodeBody reads a JSON body into v, writing invalid_request on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		slogx.FromContext(r.Context()).Debug("rejected request body", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return false
	}
	return true
}
