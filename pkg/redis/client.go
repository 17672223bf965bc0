package redis

import (
	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/trafficroom/config"
)

// NewClient builds a client from cfg. Write timeouts are left to callers,
// which bound every call with their own context.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:                  cfg.Addr,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		MaxRetries:            cfg.MaxRetries,
		PoolSize:              cfg.PoolSize,
		MinIdleConns:          cfg.MinIdleConns,
		ContextTimeoutEnabled: true,
	})
}
