package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, ttl time.Duration) TokenService {
	t.Helper()
	svc, err := NewTokenService(ttl, "harbor-test", "harbor-api", "test-secret-key-0123456789abcdef")
	require.NoError(t, err)
	return svc
}

func TestTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService(time.Hour, "iss", "aud", "")
	assert.Error(t, err)
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	token, err := svc.GenerateToken(42, 7)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, uint(7), claims.InstitutionID)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newTestTokenService(t, -time.Minute)

	token, err := svc.GenerateToken(1, 1)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	for _, token := range []string{"", "not.a.token", "aaa.bbb.ccc"} {
		_, err := svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	issuer := newTestTokenService(t, time.Hour)
	other, err := NewTokenService(time.Hour, "harbor-test", "harbor-api", "a-completely-different-secret")
	require.NoError(t, err)

	token, err := issuer.GenerateToken(1, 1)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIDsAreUnique(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	first, err := svc.GenerateToken(1, 1)
	require.NoError(t, err)
	second, err := svc.GenerateToken(1, 1)
	require.NoError(t, err)

	c1, err := svc.ValidateToken(first)
	require.NoError(t, err)
	c2, err := svc.ValidateToken(second)
	require.NoError(t, err)

	assert.NotEqual(t, c1.TokenID, c2.TokenID)
}
