package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketplace-checkout/internal/domain"
)

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *RedisCache) Get(ctx context.Context, postalCode string) (*domain.ServiceabilityResult, error) {
	data, err := r.client.Get(ctx, cacheKey(postalCode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var res domain.ServiceabilityResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("unmarshal serviceability failed: %w", err)
	}
	return &res, nil
}

func (r *RedisCache) Set(ctx context.Context, result domain.ServiceabilityResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal serviceability failed: %w", err)
	}
	if err := r.client.Set(ctx, cacheKey(result.PostalCode), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(postalCode string) string {
	return fmt.Sprintf("serviceability:%s", postalCode)
}
