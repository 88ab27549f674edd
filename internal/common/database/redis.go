package database

import (
	"context"
	"fmt"
	"time"

	"stream-monetization-workers/internal/common/config"

	"github.com/redis/go-redis/v9"
)

const redisClientName = "stream-monetization-workers"

// RedisClient backs the chat analysis cache. Entries expire after the
// configured cache TTL.
type RedisClient struct {
	Client *redis.Client
	ttl    time.Duration
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis: address is required")
	}
	return &RedisClient{
		Client: redis.NewClient(redisOptions(cfg)),
		ttl:    time.Duration(cfg.CacheTTL) * time.Second,
	}, nil
}

func redisOptions(cfg config.RedisConfig) *redis.Options {
	commandTimeout := config.GetDuration(cfg.CommandTimeout)
	return &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   redisClientName,
		DialTimeout:  config.GetDuration(cfg.DialTimeout),
		ReadTimeout:  commandTimeout,
		WriteTimeout: commandTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
}

// CacheTTL is how long a cached analysis stays valid.
func (c *RedisClient) CacheTTL() time.Duration {
	return c.ttl
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.Client.Options().Addr, err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
