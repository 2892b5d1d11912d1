package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"salepoint/backend/internal/domain"
)

type RedisReportCache struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, addr, password string, db int) (*RedisReportCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisReportCache{client: client}, nil
}

func (c *RedisReportCache) GetOverview(ctx context.Context, key string) (*domain.SalesOverview, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var overview domain.SalesOverview
	if err := json.Unmarshal(raw, &overview); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &overview, nil
}

func (c *RedisReportCache) SetOverview(ctx context.Context, key string, overview *domain.SalesOverview, ttl time.Duration) error {
	raw, err := json.Marshal(overview)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}
