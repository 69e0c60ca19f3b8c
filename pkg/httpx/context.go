package httpx

import (
	"context"

	"github.com/aussiebroadwan/doorman/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyClaims ctxKey = "claims"
	CtxKeyToken  ctxKey = "token"
)

// ContextWithAuth stores the verified access token and its claims.
func ContextWithAuth(ctx context.Context, token string, c *jwtx.AccessClaims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ContextWithToken(ctx, token)
}

// ContextWithToken stores a raw bearer token that has not been verified.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, CtxKeyToken, token)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(CtxKeyUserID).(string)
	return v, ok && v != ""
}

func ClaimsFromContext(ctx context.Context) (*jwtx.AccessClaims, bool) {
	v, ok := ctx.Value(CtxKeyClaims).(*jwtx.AccessClaims)
	return v, ok && v != nil
}

// TokenFromContext returns the raw bearer token the request authenticated with.
func TokenFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(CtxKeyToken).(string)
	return v, ok && v != ""
}

func rolesFromCtx(ctx context.Context) []string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Roles
	}
	return nil
}
