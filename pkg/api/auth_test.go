package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := NewToken("secret", "user1", "WalletXYZ", time.Hour)
	require.NoError(t, err)

	identity, err := parseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user1", identity.UserID)
	assert.Equal(t, "WalletXYZ", identity.WalletAddress)
}

func TestTokenWithoutWallet(t *testing.T) {
	token, err := NewToken("secret", "user1", "", time.Hour)
	require.NoError(t, err)

	identity, err := parseToken("secret", token)
	require.NoError(t, err)
	assert.Empty(t, identity.WalletAddress)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewToken("secret", "user1", "", time.Hour)
	require.NoError(t, err)

	_, err = parseToken("other-secret", token)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	token, err := NewToken("secret", "user1", "", -time.Minute)
	require.NoError(t, err)

	_, err = parseToken("secret", token)
	assert.Error(t, err)
}
