package utils

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"handyfix/config"
)

// CacheClient is the Redis client backing the recommendation result cache.
var CacheClient *redis.Client

// InitCache connects to Redis when caching is enabled. A failed ping disables the cache
// instead of stopping the server.
func InitCache() *redis.Client {
	if !config.AppConfig.CacheEnabled {
		GetLogger().Info("Recommendation cache disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCacheDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		GetLogger().Warn("Failed to connect to Redis, running without cache",
			zap.String("addr", config.AppConfig.RedisAddr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	CacheClient = client
	return client
}

// GetCacheClient returns the cache client, or nil when caching is off.
func GetCacheClient() *redis.Client {
	if CacheClient == nil {
		return InitCache()
	}
	return CacheClient
}
