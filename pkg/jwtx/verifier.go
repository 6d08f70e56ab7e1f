package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed = errors.New("jwtx: malformed token")
	ErrExpired   = errors.New("jwtx: token expired")
	ErrIssuer    = errors.New("jwtx: issuer mismatch")
)

// Verifier validates tokens produced by one Signer.
type Verifier struct {
	alg    string
	key    any
	issuer string
}

// NewVerifier returns a Verifier accepting only s's algorithm and key. An
// empty issuer disables the issuer check.
func NewVerifier(s Signer, issuer string) *Verifier {
	return &Verifier{alg: s.Alg(), key: s.VerifyKey(), issuer: issuer}
}

// Verify checks the signature, then the claims as of now. A token is expired
// once now reaches its exp. Expiry is only reported for tokens whose
// signature checked out; everything else is ErrMalformed.
func (v *Verifier) Verify(raw string, now time.Time) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{v.alg}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	default:
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	return claims, nil
}
