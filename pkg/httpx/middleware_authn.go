package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/doorman/pkg/jwtx"
	"github.com/aussiebroadwan/doorman/pkg/slogx"
)

// ErrMissingBearer is passed to the ErrorWriter when no bearer token is present.
var ErrMissingBearer = errors.New("httpx: missing bearer token")

// Authenticator turns a raw access token into verified claims.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwtx.AccessClaims, error)
}

// ErrorWriter renders err as an HTTP response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(authz[len("Bearer "):])
	return raw, raw != ""
}

// AuthnMiddleware requires a bearer token accepted by a and injects its
// claims into the request context. Failures go to writeErr.
func AuthnMiddleware(a Authenticator, writeErr ErrorWriter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				writeErr(w, r, ErrMissingBearer)
				return
			}

			claims, err := a.Authenticate(ctx, raw)
			if err != nil {
				slogx.FromContext(ctx).Warn("bearer authentication failed", "err", err)
				writeErr(w, r, err)
				return
			}

			ctx = slogx.WithAttrs(ctx, "user_id", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ContextWithAuth(ctx, raw, claims)))
		})
	}
}

// RequireBearer only checks that a bearer token is present and stores it in
// the request context. The token is not verified.
func RequireBearer(writeErr ErrorWriter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				writeErr(w, r, ErrMissingBearer)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithToken(r.Context(), raw)))
		})
	}
}

// RequireAnyRole lets the request through when the authenticated caller
// holds at least one of roles. Must run after AuthnMiddleware.
func RequireAnyRole(roles ...string) Middleware {
	want := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		want[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, have := range rolesFromCtx(r.Context()) {
				if _, ok := want[have]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			// RFC 6750 insufficient_scope.
			w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(roles, " ")+`"`)
			WriteJSON(w, http.StatusForbidden, map[string]string{
				"error":             "insufficient_scope",
				"error_description": "The caller lacks a required role.",
			})
		})
	}
}
