// Package operator validates staff-portal access tokens.
//
// Foyer Core does not handle operator logins: the staff portal authenticates
// humans and issues short-lived HS256 JWTs with a shared secret. This package
// only verifies those tokens so the admin endpoints can trust the subject and
// role claims. Token minting lives here too, but is used by the portal and by
// tests - never by request handlers.
package operator

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role represents an operator authorisation tier.
type Role string

const (
	// RoleManager runs the property day to day: device provisioning,
	// activation, revocation, role assignment, audit review.
	RoleManager Role = "manager"

	// RoleOwner has everything manager can do. Kept distinct so future
	// destructive operations can be owner-only without a token format change.
	RoleOwner Role = "owner"
)

// ErrTokenInvalid is returned for any token that fails verification.
var ErrTokenInvalid = errors.New("invalid operator token")

// Claims extends JWT standard claims with Foyer-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// GenerateToken creates a signed operator access token.
// Used by the staff portal and by tests; Foyer Core itself only verifies.
func GenerateToken(subject string, role Role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing operator token: %w", err)
	}
	return signed, nil
}

// ParseToken validates and parses an operator access token.
// It checks the signature, expiry, and required fields.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	if claims.Role != RoleManager && claims.Role != RoleOwner {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	return claims, nil
}
