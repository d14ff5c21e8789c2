package jwtx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func rsaPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func ecPEM(t *testing.T, curve elliptic.Curve) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func TestNewSigner(t *testing.T) {
	t.Parallel()

	t.Run("rejects unknown algorithm", func(t *testing.T) {
		_, err := NewSigner("none", "kid", nil, "")
		require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("rejects RS alg with EC key", func(t *testing.T) {
		_, err := NewSigner("RS256", "kid", ecPEM(t, elliptic.P256()), "")
		require.Error(t, err)
	})

	t.Run("rejects ES256 with mismatched curve", func(t *testing.T) {
		_, err := NewSigner("ES256", "kid", ecPEM(t, elliptic.P384()), "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "P-256")
	})

	t.Run("rejects empty HMAC secret", func(t *testing.T) {
		_, err := NewSigner("HS256", "kid", nil, "")
		require.Error(t, err)
	})

	t.Run("rejects short HMAC secret", func(t *testing.T) {
		_, err := NewSigner("HS512", "kid", nil, strings.Repeat("x", 63))
		require.Error(t, err)
		require.Contains(t, err.Error(), "64")
	})

	t.Run("accepts matching curve", func(t *testing.T) {
		s, err := NewSigner("ES512", "kid", ecPEM(t, elliptic.P521()), "")
		require.NoError(t, err)
		require.Equal(t, "ES512", s.Alg())
	})
}

func TestSignRoundTrip(t *testing.T) {
	t.Parallel()

	secret := strings.Repeat("s", 32)
	signer, err := NewSigner("HS256", "key-1", nil, secret)
	require.NoError(t, err)

	signed, err := signer.Sign(jwt.MapClaims{"sub": "alice", "iss": "https://idp.test"})
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	require.True(t, token.Valid)
	require.Equal(t, "key-1", token.Header["kid"])

	claims := token.Claims.(jwt.MapClaims)
	require.Equal(t, "alice", claims["sub"])
}

func TestSignRSACarriesKID(t *testing.T) {
	t.Parallel()

	signer, err := NewSigner("RS256", "rsa-key", rsaPEM(t), "")
	require.NoError(t, err)

	signed, err := signer.Sign(jwt.MapClaims{"sub": "bob"})
	require.NoError(t, err)

	token, _, err := jwt.NewParser().ParseUnverified(signed, jwt.MapClaims{})
	require.NoError(t, err)
	require.Equal(t, "rsa-key", token.Header["kid"])
	require.Equal(t, "RS256", token.Header["alg"])
}

func TestTokenHash(t *testing.T) {
	t.Parallel()

	signer, err := NewSigner("HS256", "", nil, strings.Repeat("s", 32))
	require.NoError(t, err)

	hash, err := signer.TokenHash("sample-access-token")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("sample-access-token"))
	want := base64.RawURLEncoding.EncodeToString(sum[:16])
	require.Equal(t, want, hash)
}
