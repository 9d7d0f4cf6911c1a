// Package token issues and verifies the signed claims payload carried
// in the auth cookie. Tokens are HS256-signed JWTs keyed on a
// process-wide secret; nothing in the payload is encrypted.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the validity window applied to issued tokens.
const DefaultTTL = 30 * 24 * time.Hour

var (
	// ErrInvalidSignature is returned when the token signature does not
	// match the configured secret.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrMalformed is returned when the token cannot be parsed.
	ErrMalformed = errors.New("malformed token")

	// ErrExpired is returned when the token is past its expiry.
	ErrExpired = errors.New("token expired")
)

// Claims is the authenticated identity embedded in a token. It is
// immutable once issued; expiry is always issued-at plus the codec TTL.
type Claims struct {
	UserID   int    `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a shared symmetric secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec constructs a Codec. An empty secret is a misconfiguration
// and is rejected so the caller can fail at startup rather than per
// request.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}
	return &Codec{secret: secret, ttl: DefaultTTL}, nil
}

// NewCodecWithTTL constructs a Codec with a custom validity window.
func NewCodecWithTTL(secret []byte, ttl time.Duration) (*Codec, error) {
	codec, err := NewCodec(secret)
	if err != nil {
		return nil, err
	}
	codec.ttl = ttl
	return codec, nil
}

// Issue builds a signed token for the given identity. Issued-at is the
// current time and expiry is issued-at plus the codec TTL.
func (c *Codec) Issue(userID int, username, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: signing failed: %w", err)
	}
	return signed, nil
}

// Verify parses a token, checks its signature against the codec secret,
// and checks expiry. Failures map to ErrInvalidSignature, ErrExpired,
// or ErrMalformed; callers surface all three uniformly as an
// unauthenticated outcome.
func (c *Codec) Verify(tokenString string) (Claims, error) {
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrInvalidSignature):
			return Claims{}, ErrInvalidSignature
		default:
			return Claims{}, ErrMalformed
		}
	}
	if !parsed.Valid {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}
