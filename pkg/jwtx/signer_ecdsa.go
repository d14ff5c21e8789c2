package jwtx

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ECDSASigner implements Signer for the ES256/ES384/ES512 family. Each ES
// variant implies a specific curve; a key on any other curve is rejected at
// construction, not at sign time.
type ECDSASigner struct {
	alg    string
	kid    string
	method jwt.SigningMethod
	key    *ecdsa.PrivateKey
}

// curveForAlg maps the ES variant to the curve it mandates (RFC 7518 §3.4).
func curveForAlg(alg string) string {
	switch alg {
	case "ES256":
		return "P-256"
	case "ES384":
		return "P-384"
	case "ES512":
		return "P-521"
	default:
		return ""
	}
}

// newECDSASigner loads an EC private key from PEM bytes. EC keys must be in
// PKCS8 or SEC1 ("EC PRIVATE KEY") form.
func newECDSASigner(alg, kid string, pemKey []byte) (*ECDSASigner, error) {
	method, err := signingMethod(alg)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for EC key")
	}

	var key *ecdsa.PrivateKey
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse EC key: %w", err)
		}
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
		}
		ek, ok := priv.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("jwtx: %s requires an EC private key, credential holds %T", alg, priv)
		}
		key = ek
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q for EC key", block.Type)
	}

	s := &ECDSASigner{alg: alg, kid: kid, method: method, key: key}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ECDSASigner) Alg() string { return s.alg }
func (s *ECDSASigner) KID() string { return s.kid }

// Sign turns the claim set into a signed compact JWT string.
func (s *ECDSASigner) Sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.key)
}

func (s *ECDSASigner) TokenHash(value string) (string, error) {
	return tokenHash(s.alg, value)
}

// Validate checks that the key's curve matches the one the algorithm
// mandates.
func (s *ECDSASigner) Validate() error {
	if s.key == nil {
		return errors.New("jwtx: nil EC key")
	}

	want := curveForAlg(s.alg)
	if got := s.key.Curve.Params().Name; got != want {
		return fmt.Errorf("jwtx: %s requires curve %s, key uses %s", s.alg, want, got)
	}
	return nil
}
