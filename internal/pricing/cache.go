package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-storefront/internal/models"

	"github.com/go-redis/redis/v8"
)

const rateKeyPrefix = "gold_rate:"

// RateCache holds the current rate per karat in Redis.
type RateCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRateCache(client *redis.Client, ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RateCache{Client: client, TTL: ttl}
}

func rateKey(karat string) string {
	return rateKeyPrefix + karat
}

// Get returns nil without error on a miss.
func (c *RateCache) Get(ctx context.Context, karat string) (*models.GoldRate, error) {
	raw, err := c.Client.Get(ctx, rateKey(karat)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read gold rate cache: %w", err)
	}

	var rate models.GoldRate
	if err := json.Unmarshal(raw, &rate); err != nil {
		return nil, fmt.Errorf("failed to decode cached gold rate: %w", err)
	}
	return &rate, nil
}

func (c *RateCache) Set(ctx context.Context, rate *models.GoldRate) error {
	raw, err := json.Marshal(rate)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, rateKey(rate.Karat), raw, c.TTL).Err()
}
