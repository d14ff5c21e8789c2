package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for client secret hashing. These follow the RFC 9106
// low-memory recommendation; client secrets are high-entropy so the work
// factor matters less than for human passwords.
const (
	saltLength  = 16
	iterations  = 3
	memory      = 64 * 1024
	parallelism = 2
	keyLength   = 32
)

var ErrSecretMismatch = errors.New("cryptox: secret does not match hash")

// HashSecret generates a PHC-format Argon2id hash string including salt and
// parameters.
func HashSecret(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt, iterations, memory, parallelism, keyLength)
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism, b64Salt, b64Hash,
	), nil
}

// VerifySecret compares a plaintext secret against a PHC-style Argon2id hash.
// Returns ErrSecretMismatch when the secret does not match.
func VerifySecret(secret, encodedHash string) error {
	parts := strings.Split(encodedHash, "$")

	// Expected: ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	if len(parts) != 6 || parts[1] != "argon2id" {
		return errors.New("cryptox: invalid secret hash format")
	}

	var mem, iter uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return errors.New("cryptox: invalid secret hash parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return errors.New("cryptox: invalid secret hash salt")
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return errors.New("cryptox: invalid secret hash digest")
	}

	got := argon2.IDKey([]byte(secret), salt, iter, mem, par, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrSecretMismatch
	}
	return nil
}
