package jwtx

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"
)

// tokenHash implements the OIDC Core token hash (at_hash, c_hash): the ASCII
// token value is hashed with the hash function matching the JWS algorithm's
// digest size and the left half of the digest is base64url encoded.
func tokenHash(alg, value string) (string, error) {
	var h hash.Hash
	switch {
	case strings.HasSuffix(alg, "256"):
		h = sha256.New()
	case strings.HasSuffix(alg, "384"):
		h = sha512.New384()
	case strings.HasSuffix(alg, "512"):
		h = sha512.New()
	default:
		return "", fmt.Errorf("%w: no hash for %q", ErrUnsupportedAlgorithm, alg)
	}

	h.Write([]byte(value))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]), nil
}
