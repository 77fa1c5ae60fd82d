package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
)

const keyPrefix = "review:rating:"

// RatingCache memoizes rating summaries in Redis.
type RatingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRatingCache creates a Redis-backed rating cache.
func NewRatingCache(client *redis.Client, ttl time.Duration) *RatingCache {
	return &RatingCache{client: client, ttl: ttl}
}

// Get returns the cached summary for productID. The boolean is false on a
// cache miss.
func (c *RatingCache) Get(ctx context.Context, productID string) (*domain.RatingSummary, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+productID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get rating: %w", err)
	}

	var summary domain.RatingSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, false, fmt.Errorf("unmarshal rating: %w", err)
	}
	return &summary, true, nil
}

// Set stores the summary for productID with the configured TTL.
func (c *RatingCache) Set(ctx context.Context, productID string, summary *domain.RatingSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal rating: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+productID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set rating: %w", err)
	}
	return nil
}

// Invalidate drops the cached summary for productID.
func (c *RatingCache) Invalidate(ctx context.Context, productID string) error {
	if err := c.client.Del(ctx, keyPrefix+productID).Err(); err != nil {
		return fmt.Errorf("redis del rating: %w", err)
	}
	return nil
}

// Ping checks Redis answers.
func (c *RatingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
