// Package redis provides the Redis-backed cache for cross-corpus match
// decisions.
package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/linkrx/formident/internal/config"
	"github.com/linkrx/formident/pkg/errors"
)

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "failed to connect to redis").
			WithDetail(cfg.Addr)
	}
	return client, nil
}
