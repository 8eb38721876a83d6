// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"

	"brand-zoning/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient holds the connection pool behind the per-client rate limiter.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis builds a pool tuned for the request path: every round trip is
// bounded by cfg.Timeout and failed commands are not retried, so an outage
// costs a request at most one timeout before the limiter fails open.
// It does not dial; call Ping.
func NewRedis(cfg config.RedisConfig) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:                  cfg.Address,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		DialTimeout:           cfg.Timeout,
		ReadTimeout:           cfg.Timeout,
		WriteTimeout:          cfg.Timeout,
		PoolTimeout:           cfg.Timeout,
		ContextTimeoutEnabled: true,
		MaxRetries:            -1,
		PoolSize:              cfg.PoolSize,
	})
	return &RedisClient{Client: rdb}
}

// Ping checks reachability within the configured timeout.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s failed: %w", c.Client.Options().Addr, err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
