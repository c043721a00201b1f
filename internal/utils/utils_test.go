package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenClaims(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, "STAFF", 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "STAFF", claims["role"])
	assert.Equal(t, Issuer, claims["iss"])
}

func TestRefreshTokenHash(t *testing.T) {
	a, err := NewRefreshToken(7)
	require.NoError(t, err)
	b, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, a.Raw, 96)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
	assert.NotEqual(t, a.Raw, HashRefreshRaw(a.Raw))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("pole-dance", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "pole-dance"))
	assert.False(t, VerifyPassword(hash, "aerial-hoop"))
}

func TestCheckPasswordPolicy(t *testing.T) {
	assert.NoError(t, CheckPasswordPolicy("hoop2024"))
	assert.ErrorIs(t, CheckPasswordPolicy("short1"), ErrWeakPassword)
	assert.ErrorIs(t, CheckPasswordPolicy("lettersonly"), ErrWeakPassword)
	assert.ErrorIs(t, CheckPasswordPolicy("12345678"), ErrWeakPassword)
}
