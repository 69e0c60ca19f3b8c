package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed     = errors.New("jwtx: malformed token")
	ErrInvalidSig    = errors.New("jwtx: invalid signature")
	ErrExpired       = errors.New("jwtx: token expired")
	ErrNotYetValid   = errors.New("jwtx: token not yet valid")
	ErrInvalidIssuer = errors.New("jwtx: issuer mismatch")
	ErrWrongUse      = errors.New("jwtx: wrong token use")
	ErrInvalidClaim  = errors.New("jwtx: invalid claims")
	ErrEmptySecret   = errors.New("jwtx: empty secret")
)

// Claims is implemented by the claim types this package signs.
type Claims interface {
	jwt.Claims
	TokenUse() string
}

// HMACSigner signs claims with HS256.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner returns a signer for secret. The secret is copied.
func NewHMACSigner(secret []byte) (*HMACSigner, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &HMACSigner{secret: append([]byte(nil), secret...)}, nil
}

func (s *HMACSigner) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign turns claims into a compact JWT.
func (s *HMACSigner) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// HMACVerifier validates HS256 tokens signed with one secret.
type HMACVerifier struct {
	secret []byte

	// Issuer the token must carry. Empty means "don't care".
	Issuer string

	// Leeway allows small clock skew when validating exp/iat.
	Leeway time.Duration

	// Now overrides the clock, used by tests.
	Now func() time.Time
}

// NewHMACVerifier returns a verifier for secret and issuer.
func NewHMACVerifier(secret []byte, issuer string) (*HMACVerifier, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &HMACVerifier{secret: append([]byte(nil), secret...), Issuer: issuer}, nil
}

// VerifyAccess parses an access token.
func (v *HMACVerifier) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := v.verify(token, claims, UseAccess); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh parses a refresh token.
func (v *HMACVerifier) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := v.verify(token, claims, UseRefresh); err != nil {
		return nil, err
	}
	return claims, nil
}

func (v *HMACVerifier) verify(tokenStr string, claims Claims, use string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.Leeway),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(v.Now))
	}

	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return classify(err)
	}
	if !token.Valid {
		return ErrInvalidClaim
	}
	if claims.TokenUse() != use {
		return ErrWrongUse
	}
	if sub, _ := claims.GetSubject(); sub == "" {
		return fmt.Errorf("%w: missing sub", ErrInvalidClaim)
	}
	return nil
}

// classify folds golang-jwt's error tree into this package's sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrInvalidIssuer
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
}

// DecodeUnsafe returns the claims of token without checking the signature
// or expiry. Never use the result for an authorization decision.
func DecodeUnsafe(token string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}
