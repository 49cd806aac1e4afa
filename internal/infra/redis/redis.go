package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trackflow/trackflow/config"
)

// Redis sits on the redirect hot path (velocity counters, rate limits), so
// timeouts stay tight: a slow counter must not hold a visitor's redirect.
const (
	dialTimeout = 2 * time.Second
	readTimeout = 500 * time.Millisecond
	pingTimeout = 5 * time.Second
)

// NewClient builds a redis client from app config and verifies connectivity
// with a PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", host, port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
		ReadTimeout: readTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return rdb, nil
}
