package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/threadware/fulfillment/internal/catalog/application"
	"github.com/threadware/fulfillment/internal/catalog/domain"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(id string) string { return "catalog:sku:" + id }

func (r *RedisCache) Get(ctx context.Context, id string) (domain.SKU, error) {
	data, err := r.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SKU{}, application.ErrCacheMiss
	}
	if err != nil {
		return domain.SKU{}, fmt.Errorf("redis get failed: %w", err)
	}

	var sku domain.SKU
	if err := json.Unmarshal(data, &sku); err != nil {
		return domain.SKU{}, fmt.Errorf("unmarshal sku failed: %w", err)
	}
	return sku, nil
}

func (r *RedisCache) Set(ctx context.Context, sku domain.SKU) error {
	data, err := json.Marshal(sku)
	if err != nil {
		return fmt.Errorf("marshal sku failed: %w", err)
	}
	if err := r.client.Set(ctx, cacheKey(sku.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
