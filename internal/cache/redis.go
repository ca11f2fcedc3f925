package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/feedpulse/config"
)

// NewClient 按配置构造 redis 客户端
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// Ready reports whether the cache store answers PING.
func Ready(ctx context.Context, rdb redis.UniversalClient) bool {
	return rdb.Ping(ctx).Err() == nil
}
