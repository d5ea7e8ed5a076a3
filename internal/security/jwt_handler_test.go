package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTHandler_RejectsEmptySecret(t *testing.T) {
	_, err := NewJWTHandler("", nil)
	require.Error(t, err)
}

func TestGenerateAndValidateToken_RoundTrips(t *testing.T) {
	h, err := NewJWTHandler("test-secret", nil)
	require.NoError(t, err)

	token, err := h.GenerateToken("client-1", "operator", 1)
	require.NoError(t, err)

	claims, err := h.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.ClientID)
	assert.Equal(t, "operator", claims.Role)
}

func TestGenerateToken_RejectsUnknownRole(t *testing.T) {
	h, err := NewJWTHandler("test-secret", nil)
	require.NoError(t, err)

	_, err = h.GenerateToken("client-1", "superuser", 1)
	require.Error(t, err)
}

func TestValidateToken_RejectsTokenSignedWithDifferentSecret(t *testing.T) {
	issuer, err := NewJWTHandler("secret-a", nil)
	require.NoError(t, err)
	verifier, err := NewJWTHandler("secret-b", nil)
	require.NoError(t, err)

	token, err := issuer.GenerateToken("client-1", "viewer", 1)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateToken_RejectsTamperedSignature(t *testing.T) {
	h, err := NewJWTHandler("test-secret", nil)
	require.NoError(t, err)

	token, err := h.GenerateToken("client-1", "viewer", 1)
	require.NoError(t, err)

	_, err = h.ValidateToken(token[:len(token)-2])
	require.Error(t, err)
}

func TestValidateToken_RejectsEmptyToken(t *testing.T) {
	h, err := NewJWTHandler("test-secret", nil)
	require.NoError(t, err)

	_, err = h.ValidateToken("")
	require.Error(t, err)
}

func TestCheckRateLimit_BlocksAfterLimitWithinWindow(t *testing.T) {
	h, err := NewJWTHandler("test-secret", nil)
	require.NoError(t, err)
	h.SetRateLimit(2, time.Minute)

	assert.True(t, h.CheckRateLimit("client-1"))
	assert.True(t, h.CheckRateLimit("client-1"))
	assert.False(t, h.CheckRateLimit("client-1"))
}

func TestCleanupExpiredClients_RemovesInactiveEntries(t *testing.T) {
	h, err := NewJWTHandler("test-secret", nil)
	require.NoError(t, err)
	h.CheckRateLimit("stale-client")

	h.CleanupExpiredClients(0)

	h.rateMutex.RLock()
	_, exists := h.clientRates["stale-client"]
	h.rateMutex.RUnlock()
	assert.False(t, exists)
}
