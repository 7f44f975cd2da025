// internal/auth/cache.go
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache shares confidential-client tokens across processes through
// redis. All methods are nil-receiver safe and degrade to a cache miss on any
// backend error: a broken cache must never turn into an auth failure.
type TokenCache struct {
	rdb *redis.Client
}

func NewTokenCache(rdb *redis.Client) *TokenCache {
	if rdb == nil {
		return nil
	}
	return &TokenCache{rdb: rdb}
}

func (c *TokenCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	tok, err := c.rdb.Get(ctx, key).Result()
	if err != nil || tok == "" {
		return "", false
	}
	return tok, true
}

func (c *TokenCache) Put(ctx context.Context, key, token string, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}
	_ = c.rdb.Set(ctx, key, token, ttl).Err()
}

// cacheKey hashes the identifying tuple so scope strings never appear as raw
// key material in redis.
func cacheKey(tenantID, authType string, scopes []string) string {
	sum := sha256.Sum256([]byte(tenantID + "|" + authType + "|" + strings.Join(scopes, " ")))
	return "graphplane:token:" + hex.EncodeToString(sum[:])
}
