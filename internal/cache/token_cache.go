package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flack-chat/flack-server/internal/types"
)

const tokenTTL = 15 * time.Minute

// TokenCache caches token-to-user resolutions. All methods are nil-safe so
// callers can run without Redis configured.
type TokenCache struct {
	redis *RedisCache
}

func NewTokenCache(redis *RedisCache) *TokenCache {
	return &TokenCache{redis: redis}
}

func (tc *TokenCache) GetUser(ctx context.Context, token string) (*types.User, error) {
	if tc == nil || tc.redis == nil {
		return nil, nil
	}

	raw, err := tc.redis.Get(ctx, tokenKey(token))
	if err != nil || raw == nil {
		return nil, err
	}

	var user types.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (tc *TokenCache) SetUser(ctx context.Context, token string, user types.User) error {
	if tc == nil || tc.redis == nil {
		return nil
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return tc.redis.Set(ctx, tokenKey(token), raw, tokenTTL)
}

func (tc *TokenCache) Invalidate(ctx context.Context, token string) error {
	if tc == nil || tc.redis == nil {
		return nil
	}
	return tc.redis.Delete(ctx, tokenKey(token))
}

func tokenKey(token string) string {
	return "token:" + token
}
