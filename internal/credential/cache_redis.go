package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "credentia/pkg/domain"
)

// VerificationCache is a read-through cache for Verify results. A miss is not
// an error; Verify falls back to the stores.
type VerificationCache interface {
	Get(ctx context.Context, credID id.CredentialID) (*VerificationResult, bool)
	Set(ctx context.Context, credID id.CredentialID, result *VerificationResult)
	Invalidate(ctx context.Context, credID id.CredentialID)
}

// RedisVerificationCache stores verification results with a short TTL. The
// TTL bounds staleness after an institution's activation state changes;
// credential revocation invalidates eagerly.
type RedisVerificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisVerificationCache(client *redis.Client, ttl time.Duration) *RedisVerificationCache {
	return &RedisVerificationCache{client: client, ttl: ttl}
}

func cacheKey(credID id.CredentialID) string {
	return fmt.Sprintf("verify:%s", credID.String())
}

func (c *RedisVerificationCache) Get(ctx context.Context, credID id.CredentialID) (*VerificationResult, bool) {
	raw, err := c.client.Get(ctx, cacheKey(credID)).Bytes()
	if err != nil {
		return nil, false
	}
	var result VerificationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (c *RedisVerificationCache) Set(ctx context.Context, credID id.CredentialID, result *VerificationResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	// Cache failures are invisible to callers; the next Verify hits the store.
	_ = c.client.Set(ctx, cacheKey(credID), raw, c.ttl).Err()
}

func (c *RedisVerificationCache) Invalidate(ctx context.Context, credID id.CredentialID) {
	_ = c.client.Del(ctx, cacheKey(credID)).Err()
}
