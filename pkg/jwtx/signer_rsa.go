package jwtx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// RSASigner implements Signer for the RS256/RS384/RS512 family.
type RSASigner struct {
	alg    string
	kid    string
	method jwt.SigningMethod
	key    *rsa.PrivateKey
}

// newRSASigner loads an RSA private key from PEM bytes. Handles both PKCS1
// and PKCS8 because otherwise we will be chasing a bug for longer than we
// would be willing to admit.
func newRSASigner(alg, kid string, pemKey []byte) (*RSASigner, error) {
	method, err := signingMethod(alg)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for RSA key")
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS1: %w", err)
		}
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
		}
		rk, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("jwtx: %s requires an RSA private key, credential holds %T", alg, priv)
		}
		key = rk
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q for RSA key", block.Type)
	}

	s := &RSASigner{alg: alg, kid: kid, method: method, key: key}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RSASigner) Alg() string { return s.alg }
func (s *RSASigner) KID() string { return s.kid }

// Sign turns the claim set into a signed compact JWT string.
func (s *RSASigner) Sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.key)
}

func (s *RSASigner) TokenHash(value string) (string, error) {
	return tokenHash(s.alg, value)
}

// Validate checks that the credential is usable for the configured algorithm.
func (s *RSASigner) Validate() error {
	if s.key == nil {
		return errors.New("jwtx: nil RSA key")
	}
	return s.key.Validate()
}
