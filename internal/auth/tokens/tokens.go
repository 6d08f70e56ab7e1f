// Package tokens issues and verifies the signed, time-bounded credentials
// handed to clients after login. Two wire formats are supported, JWT and
// PASETO v4.public, behind the same Codec interface.
package tokens

import (
	"errors"
	"fmt"
	"time"
)

// Kind selects the lifetime policy and is embedded in the token, so an access
// token is never accepted where a refresh token is expected.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

var (
	// ErrExpired is returned for authentic tokens whose expiry has elapsed.
	ErrExpired = errors.New("token_expired")

	// ErrMalformed covers everything else: bad structure, bad signature,
	// wrong algorithm, wrong issuer or wrong kind.
	ErrMalformed = errors.New("token_malformed")
)

// Token is a freshly minted credential.
type Token struct {
	Value     string
	Kind      Kind
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims are the verified contents of a presented token.
type Claims struct {
	Subject   string
	Kind      Kind
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec mints and checks tokens. Both calls take the current time explicitly
// and are pure computation.
//
// Both wire formats carry whole seconds, so Issue truncates now to the second
// and the token's lifetime runs from that IssuedAt. A token minted at a
// fractional second therefore expires at IssuedAt+lifetime, which is up to a
// second earlier than now+lifetime and never later.
type Codec interface {
	Issue(subject string, kind Kind, now time.Time) (Token, error)
	Verify(raw string, kind Kind, now time.Time) (Claims, error)
}

// Lifetimes maps each Kind to how long its tokens stay valid.
type Lifetimes struct {
	Access  time.Duration
	Refresh time.Duration
}

func (l Lifetimes) of(kind Kind) (time.Duration, error) {
	var ttl time.Duration
	switch kind {
	case Access:
		ttl = l.Access
	case Refresh:
		ttl = l.Refresh
	default:
		return 0, fmt.Errorf("tokens: unknown kind %q", kind)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("tokens: no lifetime configured for %s tokens", kind)
	}
	return ttl, nil
}
