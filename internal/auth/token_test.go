package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789abcdef0123456789abcdef"

func TestGenerateAndValidateAccessToken(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 24*time.Hour)

	token, err := tm.GenerateAccessToken("user-1", "cajero1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "cajero1", claims.Username)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestGenerateRefreshToken(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 24*time.Hour)

	token, err := tm.GenerateRefreshToken("user-1", "cajero1")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, "refresh", claims.Type)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokensCarryUniqueJTIs(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 24*time.Hour)

	first, err := tm.GenerateAccessToken("user-1", "cajero1")
	require.NoError(t, err)
	second, err := tm.GenerateAccessToken("user-1", "cajero1")
	require.NoError(t, err)

	firstClaims, err := tm.ValidateToken(first)
	require.NoError(t, err)
	secondClaims, err := tm.ValidateToken(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 24*time.Hour)
	other := NewTokenManager("another-secret-another-secret-ok", time.Hour, 24*time.Hour)

	token, err := tm.GenerateAccessToken("user-1", "cajero1")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager(testSecret, -time.Minute, 24*time.Hour)

	token, err := tm.GenerateAccessToken("user-1", "cajero1")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 24*time.Hour)

	_, err := tm.ValidateToken("not-a-jwt")
	assert.Error(t, err)

	_, err = tm.ValidateToken("")
	assert.Error(t, err)
}

func TestAccessTokenExpiryAccessor(t *testing.T) {
	tm := NewTokenManager(testSecret, 45*time.Minute, 24*time.Hour)
	assert.Equal(t, 45*time.Minute, tm.AccessTokenExpiry())
}
