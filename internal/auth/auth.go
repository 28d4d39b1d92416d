// Package auth verifies optional bearer tokens at connection admission
// time. Token issuance belongs to the external auth service; this layer
// only checks signatures and expiry. Connections without a token are
// admitted - enforcement policy is a deployment concern.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/luciancaetano/syncroom"
)

// Claims carried by an access token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens. A nil Verifier means the
// deployment runs without authentication.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for the given shared secret, or nil
// when the secret is empty (auth disabled).
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", syncroom.ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", syncroom.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, syncroom.ErrInvalidToken
	}
	return claims, nil
}

// Sign issues a token for the given identity. Used by tests and by
// deployments that co-locate issuance with the sync server.
func (v *Verifier) Sign(userID, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
