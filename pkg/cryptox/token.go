package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
)

// GenerateToken creates a cryptographically secure random token of the
// specified byte length. The token is returned as a base64url-encoded string
// (URL-safe, no padding). Returns an error if the random number generator
// fails.
//
// Authorization codes use TokenSize128, access and refresh tokens
// TokenSize256.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken is like GenerateToken but panics on error. Use this only
// in contexts where failure is unrecoverable (tests, init).
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(err)
	}
	return token
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token,
// base64url-encoded. Fingerprints let us persist lookups of secret values
// without storing the value itself.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
