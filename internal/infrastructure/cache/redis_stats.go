package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"JobScanner/internal/config"
	"JobScanner/internal/domain"
	"JobScanner/internal/ports"
)

const statsKey = "jobscanner:stats:v1"

// RedisStatsCache stores the latest stats snapshot as JSON under one key.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.StatsCache = (*RedisStatsCache)(nil)

// NewRedisStatsCache creates a client and verifies the connection with a PING.
func NewRedisStatsCache(ctx context.Context, cfg config.RedisConfig) (*RedisStatsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStatsCacheWithClient(client, cfg.StatsTTL), nil
}

// NewRedisStatsCacheWithClient wraps an existing client.
func NewRedisStatsCacheWithClient(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisStatsCache{client: client, ttl: ttl}
}

// Get returns nil without an error on a cache miss.
func (c *RedisStatsCache) Get(ctx context.Context) (*domain.StatsSnapshot, error) {
	raw, err := c.client.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	var snap domain.StatsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &snap, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, snapshot domain.StatsSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := c.client.Set(ctx, statsKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set stats: %w", err)
	}
	return nil
}

func (c *RedisStatsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, statsKey).Err(); err != nil {
		return fmt.Errorf("invalidate stats: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}
