package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radzz.ai/chat-orchestrator/internal/config"
)

func withSecret(t *testing.T, secret string) {
	t.Helper()
	prev := config.AppConfig.JWTSecret
	config.AppConfig.JWTSecret = secret
	t.Cleanup(func() { config.AppConfig.JWTSecret = prev })
}

func TestJWTRoundTrip(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := GenerateJWT("Ada@Example.com")
	require.NoError(t, err)

	email, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)
}

func TestValidateJWT_Rejects(t *testing.T) {
	withSecret(t, "test-secret")

	sign := func(claims jwt.RegisteredClaims, method jwt.SigningMethod, key any) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{
		Subject:   "ada@example.com",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	foreign := valid
	foreign.Issuer = "someone-else"

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": sign(valid, jwt.SigningMethodHS256, []byte("other")),
		"expired":      sign(expired, jwt.SigningMethodHS256, []byte("test-secret")),
		"issuer":       sign(foreign, jwt.SigningMethodHS256, []byte("test-secret")),
		"none alg":     sign(valid, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateJWT(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestGenerateJWT_RequiresSecret(t *testing.T) {
	withSecret(t, "")

	_, err := GenerateJWT("ada@example.com")
	assert.Error(t, err)
}
