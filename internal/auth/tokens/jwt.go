package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/affworld/pkg/jwtx"
)

// JWTCodec encodes tokens as JWTs. Access and refresh tokens may use
// different signers, e.g. two HS256 secrets.
type JWTCodec struct {
	issuer    string
	lifetimes Lifetimes
	signers   map[Kind]jwtx.Signer
	verifiers map[Kind]*jwtx.Verifier
}

// NewJWTCodec builds a codec. Pass the same signer twice to share one key.
func NewJWTCodec(access, refresh jwtx.Signer, issuer string, lifetimes Lifetimes) *JWTCodec {
	return &JWTCodec{
		issuer:    issuer,
		lifetimes: lifetimes,
		signers:   map[Kind]jwtx.Signer{Access: access, Refresh: refresh},
		verifiers: map[Kind]*jwtx.Verifier{
			Access:  jwtx.NewVerifier(access, issuer),
			Refresh: jwtx.NewVerifier(refresh, issuer),
		},
	}
}

func (c *JWTCodec) Issue(subject string, kind Kind, now time.Time) (Token, error) {
	ttl, err := c.lifetimes.of(kind)
	if err != nil {
		return Token{}, err
	}

	claims := jwtx.NewClaims(subject, string(kind), c.issuer, ttl, now)
	raw, err := c.signers[kind].Sign(claims)
	if err != nil {
		return Token{}, fmt.Errorf("tokens: sign %s token: %w", kind, err)
	}

	return Token{
		Value:     raw,
		Kind:      kind,
		ID:        claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (c *JWTCodec) Verify(raw string, kind Kind, now time.Time) (Claims, error) {
	v, ok := c.verifiers[kind]
	if !ok {
		return Claims{}, ErrMalformed
	}

	claims, err := v.Verify(raw, now)
	switch {
	case err == nil:
	case errors.Is(err, jwtx.ErrExpired):
		return Claims{}, ErrExpired
	default:
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if Kind(claims.Kind) != kind {
		return Claims{}, fmt.Errorf("%w: expected %s token", ErrMalformed, kind)
	}

	out := Claims{Subject: claims.Subject, Kind: kind, ID: claims.ID}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	out.ExpiresAt = claims.ExpiresAt.Time
	return out, nil
}
