package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// HMACSigner implements Signer for the HS256/HS384/HS512 family using a
// shared secret. The secret must be at least as long as the HMAC digest
// (RFC 7518 §3.2), checked at construction.
type HMACSigner struct {
	alg    string
	kid    string
	method jwt.SigningMethod
	secret []byte
}

// minSecretLen returns the minimum shared secret length in bytes for the HS
// variant.
func minSecretLen(alg string) int {
	switch alg {
	case "HS256":
		return 32
	case "HS384":
		return 48
	case "HS512":
		return 64
	default:
		return 0
	}
}

func newHMACSigner(alg, kid, secret string) (*HMACSigner, error) {
	method, err := signingMethod(alg)
	if err != nil {
		return nil, err
	}

	s := &HMACSigner{alg: alg, kid: kid, method: method, secret: []byte(secret)}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *HMACSigner) Alg() string { return s.alg }
func (s *HMACSigner) KID() string { return s.kid }

// Sign turns the claim set into a signed compact JWT string.
func (s *HMACSigner) Sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.secret)
}

func (s *HMACSigner) TokenHash(value string) (string, error) {
	return tokenHash(s.alg, value)
}

// Validate checks the secret carries enough entropy for the digest size.
func (s *HMACSigner) Validate() error {
	if len(s.secret) == 0 {
		return errors.New("jwtx: empty HMAC secret")
	}
	if min := minSecretLen(s.alg); len(s.secret) < min {
		return fmt.Errorf("jwtx: %s requires a secret of at least %d bytes, got %d", s.alg, min, len(s.secret))
	}
	return nil
}
