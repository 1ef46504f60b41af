package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", "fasa-rag")

	token, err := mgr.GenerateToken("t1", "u1", "admin", "access", time.Minute)
	require.NoError(t, err)

	claims, err := mgr.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "fasa-rag", claims.Issuer)
}

func TestGenerateTokenPair(t *testing.T) {
	mgr := NewJWTManager("test-secret", "fasa-rag")

	pair, err := mgr.GenerateTokenPair("t1", "u1", "member", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	access, err := mgr.ParseToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access", access.Type)

	refresh, err := mgr.ParseToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refresh.Type)
}

func TestParseTokenErrors(t *testing.T) {
	mgr := NewJWTManager("test-secret", "fasa-rag")

	t.Run("expired", func(t *testing.T) {
		token, err := mgr.GenerateToken("t1", "u1", "member", "access", -time.Minute)
		require.NoError(t, err)
		_, err = mgr.ParseToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("other-secret", "fasa-rag")
		token, err := other.GenerateToken("t1", "u1", "member", "access", time.Minute)
		require.NoError(t, err)
		_, err = mgr.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := mgr.ParseToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
