package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("secret", "growth-journal")

	t.Run("签发并解析访问令牌", func(t *testing.T) {
		pair, err := m.GenerateTokenPair("42", 30*time.Minute, 7*24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1800), pair.ExpiresIn)

		claims, err := m.ParseToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "42", claims.UserID)
		assert.Equal(t, TokenTypeAccess, claims.Type)

		claims, err = m.ParseToken(pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, TokenTypeRefresh, claims.Type)
	})

	t.Run("过期令牌", func(t *testing.T) {
		token, err := m.GenerateToken("42", TokenTypeAccess, time.Minute)
		require.NoError(t, err)

		later := NewJWTManager("secret", "growth-journal")
		later.now = func() time.Time { return time.Now().Add(time.Hour) }
		_, err = later.ParseToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("密钥不匹配", func(t *testing.T) {
		token, err := m.GenerateToken("42", TokenTypeAccess, time.Minute)
		require.NoError(t, err)

		_, err = NewJWTManager("other", "growth-journal").ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("签发者不匹配", func(t *testing.T) {
		token, err := NewJWTManager("secret", "someone-else").GenerateToken("42", TokenTypeAccess, time.Minute)
		require.NoError(t, err)

		_, err = m.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
