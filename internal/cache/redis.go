package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/revenac/apiserver/config"
)

const defaultPingTimeout = 3 * time.Second

// Open connects to redis. It returns nil, nil when no address is configured.
func Open(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
