// Package auth verifies the pre-issued bearer credentials that accompany
// every HTTP request and websocket handshake. The core trusts the identity
// context that issued the token; it only checks the signature and expiry and
// extracts the (subject, role) pair. Token issuance lives outside this
// service; SignToken exists for tests and local tooling.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles understood by the core.
const (
	RoleClient   = "client"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// ErrInvalidToken is returned for any credential that fails signature,
// expiry, or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified (subject, role) pair attached to a call.
type Identity struct {
	Subject string
	Role    string
}

// Verifier validates bearer tokens with an HMAC secret shared with the
// identity context.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a compact JWT and returns the identity it
// carries. The token must be HS256-signed, unexpired, and carry non-empty
// sub and role claims with a known role.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return Identity{}, ErrInvalidToken
	}
	switch role {
	case RoleClient, RoleProvider, RoleAdmin:
	default:
		return Identity{}, ErrInvalidToken
	}
	return Identity{Subject: sub, Role: role}, nil
}

// SignToken issues a short-lived HS256 token for the identity. Test/tooling
// helper only; production tokens come from the identity context.
func SignToken(secret, subject, role string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
