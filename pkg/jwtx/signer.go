package jwtx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign JWT claim sets. One
// signer is constructed per server configuration from the configured
// algorithm and credential; key/algorithm compatibility is checked at
// construction so a bad pairing never survives to sign time.
type Signer interface {
	Alg() string
	KID() string
	Sign(claims jwt.MapClaims) (string, error)
	// TokenHash computes the OIDC token hash (at_hash / c_hash) of a token
	// value using the hash function implied by the signing algorithm.
	TokenHash(value string) (string, error)
	Validate() error
}

var ErrUnsupportedAlgorithm = errors.New("jwtx: unsupported signing algorithm")

// NewSigner builds a signer for the given JWS algorithm. RS* and ES*
// algorithms take a PEM-encoded private key, HS* algorithms take a shared
// secret. Anything outside those three families is rejected.
func NewSigner(alg, kid string, pemKey []byte, secret string) (Signer, error) {
	switch {
	case strings.HasPrefix(alg, "RS"):
		return newRSASigner(alg, kid, pemKey)
	case strings.HasPrefix(alg, "ES"):
		return newECDSASigner(alg, kid, pemKey)
	case strings.HasPrefix(alg, "HS"):
		return newHMACSigner(alg, kid, secret)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// signingMethod resolves alg to a concrete jwt.SigningMethod, restricted to
// the methods this package supports.
func signingMethod(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case "RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "HS256", "HS384", "HS512":
		return jwt.GetSigningMethod(alg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}
