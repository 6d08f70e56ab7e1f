package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token TTL constants.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims carried by every token the service mints. Kind separates access
// tokens from refresh tokens so one can never stand in for the other.
type Claims struct {
	jwt.RegisteredClaims

	Kind string `json:"kind"`
}

// NewClaims builds claims for subject. JWT dates have second precision, so
// issued-at is truncated before the expiry is derived from it; otherwise the
// encoded exp could land up to a second before now+ttl.
func NewClaims(subject, kind, issuer string, ttl time.Duration, now time.Time) Claims {
	iat := now.UTC().Truncate(time.Second)
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Kind: kind,
	}
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}
