package jwtx

import (
	"crypto/ed25519"
	"errors"

	"github.com/aussiebroadwan/affworld/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// minHMACKeyLen is the smallest HS256 secret accepted (256 bits).
const minHMACKeyLen = 32

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)

	// VerifyKey is the key a Verifier needs to check this signer's output.
	VerifyKey() any
}

// HS256Signer signs with a shared secret.
type HS256Signer struct {
	secret []byte
}

// NewSignerHS256 creates an HS256 signer. Secrets shorter than 32 bytes are
// rejected.
func NewSignerHS256(secret []byte) (*HS256Signer, error) {
	if len(secret) < minHMACKeyLen {
		return nil, errors.New("jwtx: HS256 secret must be at least 32 bytes")
	}
	return &HS256Signer{secret: secret}, nil
}

func (s *HS256Signer) Alg() string    { return jwt.SigningMethodHS256.Alg() }
func (s *HS256Signer) VerifyKey() any { return s.secret }

func (s *HS256Signer) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// EdDSASigner signs with an Ed25519 private key.
type EdDSASigner struct {
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

// NewSignerEdDSA creates an EdDSA signer from PKCS8 PEM bytes.
func NewSignerEdDSA(pemKey []byte) (*EdDSASigner, error) {
	key, err := cryptox.ParseEd25519PrivateKey(pemKey)
	if err != nil {
		return nil, err
	}
	return &EdDSASigner{key: key, pub: key.Public().(ed25519.PublicKey)}, nil
}

func (s *EdDSASigner) Alg() string    { return jwt.SigningMethodEdDSA.Alg() }
func (s *EdDSASigner) VerifyKey() any { return s.pub }

func (s *EdDSASigner) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.key)
}
