// Package auth mints and validates the signed identity assertions (JWTs)
// that bind API requests to a user. Verification is a pure function of the
// shared HMAC secret; no state is kept here.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/snapvault/snapvault/internal/common"
)

const (
	issuer = "snapvault"

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims carries the registered claims plus the token type and, for access
// tokens, the user's email. Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	Email     string `json:"email,omitempty"`
}

// TokenIssuer signs and verifies tokens with a shared HS256 secret.
// The now hook exists for tests.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with the given secret and token
// lifetimes (typically 15 minutes for access, 7 days for refresh).
func NewTokenIssuer(secret []byte, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccess mints a signed access token for userID.
func (t *TokenIssuer) IssueAccess(userID, email string) (string, error) {
	return t.sign(userID, email, TokenTypeAccess, t.accessTTL)
}

// IssueRefresh mints a signed refresh token for userID.
func (t *TokenIssuer) IssueRefresh(userID string) (string, error) {
	return t.sign(userID, "", TokenTypeRefresh, t.refreshTTL)
}

func (t *TokenIssuer) sign(userID, email, tokenType string, ttl time.Duration) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
		Email:     email,
	})
	return token.SignedString(t.secret)
}

// Validate parses and verifies tokenString and returns its claims. Failures
// are classified so callers can distinguish an expired token (refresh flow)
// from a broken one: common.ErrorTokenExpired, ErrorTokenMalformed,
// ErrorTokenBadSignature or ErrorTokenUnsupported.
func (t *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrorTokenUnsupported
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return t.now() }))

	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, common.ErrorTokenMalformed
	}
	return claims, nil
}

// IsRefreshToken reports whether tokenString is a valid refresh token.
// It never returns an error: any validation failure is treated as "not a
// refresh token".
func (t *TokenIssuer) IsRefreshToken(tokenString string) bool {
	claims, err := t.Validate(tokenString)
	if err != nil {
		return false
	}
	return claims.TokenType == TokenTypeRefresh
}

func classify(err error) error {
	switch {
	case errors.Is(err, common.ErrorTokenUnsupported):
		return common.ErrorTokenUnsupported
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrorTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return common.ErrorTokenBadSignature
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return common.ErrorTokenUnsupported
	default:
		return common.ErrorTokenMalformed
	}
}
