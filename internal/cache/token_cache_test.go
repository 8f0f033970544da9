package cache

import (
	"context"
	"testing"

	"github.com/flack-chat/flack-server/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestTokenCache_NilSafe(t *testing.T) {
	ctx := context.Background()

	t.Run("nil cache", func(t *testing.T) {
		var tc *TokenCache

		user, err := tc.GetUser(ctx, "tok123")
		assert.NoError(t, err)
		assert.Nil(t, user)

		assert.NoError(t, tc.SetUser(ctx, "tok123", types.User{Id: 1}))
		assert.NoError(t, tc.Invalidate(ctx, "tok123"))
	})

	t.Run("cache without redis", func(t *testing.T) {
		tc := NewTokenCache(nil)

		user, err := tc.GetUser(ctx, "tok123")
		assert.NoError(t, err)
		assert.Nil(t, user)

		assert.NoError(t, tc.SetUser(ctx, "tok123", types.User{Id: 1}))
	})
}

func Test_tokenKey(t *testing.T) {
	assert.Equal(t, "token:abc", tokenKey("abc"))
}
