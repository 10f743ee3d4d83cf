package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arhipvp/hw05-final/internal/core/ports"
)

func newKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func claimsFor(sub, iss string, exp time.Duration) UserClaims {
	return UserClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    iss,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(exp)),
	}}
}

func TestJWTVerifier(t *testing.T) {
	key, pub := newKey(t)
	v, err := NewJWTVerifier(pub, "yatube-identity")
	require.NoError(t, err)

	t.Run("Valid token", func(t *testing.T) {
		id, err := v.Validate(sign(t, key, claimsFor("42", "yatube-identity", time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, int64(42), id.UserID)
		assert.Empty(t, id.Username)
	})

	t.Run("Username claim", func(t *testing.T) {
		claims := claimsFor("42", "yatube-identity", time.Minute)
		claims.Username = " leo "
		id, err := v.Validate(sign(t, key, claims))
		require.NoError(t, err)
		assert.Equal(t, ports.Identity{UserID: 42, Username: "leo"}, id)
	})

	t.Run("Non-positive subject", func(t *testing.T) {
		_, err := v.Validate(sign(t, key, claimsFor("0", "yatube-identity", time.Minute)))
		assert.Error(t, err)
	})

	t.Run("Expired token", func(t *testing.T) {
		_, err := v.Validate(sign(t, key, claimsFor("42", "yatube-identity", -time.Minute)))
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("Wrong issuer", func(t *testing.T) {
		_, err := v.Validate(sign(t, key, claimsFor("42", "someone-else", time.Minute)))
		assert.Error(t, err)
	})

	t.Run("Non numeric subject", func(t *testing.T) {
		_, err := v.Validate(sign(t, key, claimsFor("abc", "yatube-identity", time.Minute)))
		assert.ErrorContains(t, err, "invalid subject")
	})

	t.Run("Foreign key", func(t *testing.T) {
		other, _ := newKey(t)
		_, err := v.Validate(sign(t, other, claimsFor("42", "yatube-identity", time.Minute)))
		assert.Error(t, err)
	})

	t.Run("HS256 is rejected", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor("42", "yatube-identity", time.Minute)).
			SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = v.Validate(tok)
		assert.Error(t, err)
	})
}

func TestLoadJWTVerifier(t *testing.T) {
	_, pub := newKey(t)
	path := filepath.Join(t.TempDir(), "jwt.pub")
	require.NoError(t, os.WriteFile(path, pub, 0o600))

	_, err := LoadJWTVerifier(path, "")
	require.NoError(t, err)

	_, err = LoadJWTVerifier(filepath.Join(t.TempDir(), "missing.pub"), "")
	assert.Error(t, err)

	_, err = NewJWTVerifier([]byte("not a pem"), "")
	assert.Error(t, err)
}

func TestDisabledVerifier(t *testing.T) {
	_, err := DisabledVerifier{}.Validate("anything")
	assert.ErrorIs(t, err, ErrAuthDisabled)
}
