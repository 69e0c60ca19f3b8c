package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/doorman/pkg/httpx"
	"github.com/aussiebroadwan/doorman/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := httpx.BearerToken(req)
		require.Equal(t, tt.ok, ok, tt.header)
		require.Equal(t, tt.want, got, tt.header)
	}
}

type stubAuthenticator map[string]*jwtx.AccessClaims

var errRejected = errors.New("rejected")

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*jwtx.AccessClaims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, errRejected
}

func TestAuthnMiddleware(t *testing.T) {
	claims := &jwtx.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Roles:            []string{"customer"},
	}
	auth := stubAuthenticator{"good": claims}

	var gotErr error
	writeErr := func(w http.ResponseWriter, _ *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}

	h := httpx.AuthnMiddleware(auth, writeErr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := httpx.UserIDFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "user-1", id)

		tok, ok := httpx.TokenFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "good", tok)

		c, ok := httpx.ClaimsFromContext(r.Context())
		require.True(t, ok)
		require.Same(t, claims, c)
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, call("Bearer good"))

	require.Equal(t, http.StatusUnauthorized, call(""))
	require.ErrorIs(t, gotErr, httpx.ErrMissingBearer)

	require.Equal(t, http.StatusUnauthorized, call("Bearer bad"))
	require.ErrorIs(t, gotErr, errRejected)
}

func TestRequireAnyRole(t *testing.T) {
	h := httpx.RequireAnyRole("admin")(okHandler())

	serve := func(roles []string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := httpx.ContextWithAuth(req.Context(), "tok", &jwtx.AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u"},
			Roles:            roles,
		})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req.WithContext(ctx))
		return rec
	}

	require.Equal(t, http.StatusOK, serve([]string{"customer", "admin"}).Code)

	rec := serve([]string{"customer"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "insufficient_scope")
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}

	decode := func(s string) (body, error) {
		var b body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(s))
		err := httpx.DecodeJSON(httptest.NewRecorder(), req, &b)
		return b, err
	}

	b, err := decode(`{"email":"a@example.com"}`)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", b.Email)

	_, err = decode(`{"email":"a","extra":1}`)
	require.Error(t, err)

	_, err = decode(`{"email":"a"}{"email":"b"}`)
	require.Error(t, err)

	_, err = decode(`not json`)
	require.Error(t, err)
}
