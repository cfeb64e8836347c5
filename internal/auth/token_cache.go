package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// tokenKeyPrefix namespaces verified tokens in Redis
	tokenKeyPrefix = "auth_token:"
	// MaxTokenCacheTTL bounds how long a verified token is trusted without
	// asking the issuer again
	MaxTokenCacheTTL = 5 * time.Minute
)

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// RedisTokenCache remembers who a verified token belongs to, keyed by the
// token's hash so raw tokens never land in Redis.
type RedisTokenCache struct {
	Client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{Client: client}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return tokenKeyPrefix + hex.EncodeToString(sum[:])
}

// GetIdentity returns the cached identity, or nil when the token is unknown.
func (c *RedisTokenCache) GetIdentity(ctx context.Context, token string) (*Identity, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	raw, err := c.Client.Get(ctx, tokenKey(token)).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get token from Redis: %w", err)
	}

	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil || id.UserID == "" {
		// unreadable entries count as a miss
		return nil, nil
	}
	return &id, nil
}

// SetIdentity caches the identity until the token expires, at most
// MaxTokenCacheTTL.
func (c *RedisTokenCache) SetIdentity(ctx context.Context, token string, id Identity, expiresAt time.Time) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if ttl > MaxTokenCacheTTL {
		ttl = MaxTokenCacheTTL
	}

	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	if err := c.Client.Set(ctx, tokenKey(token), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}
	return nil
}
