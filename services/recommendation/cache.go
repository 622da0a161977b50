package recommendation

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"handyfix/metrics"
	"handyfix/models"
)

const recommendationCachePrefix = "rec:workers:"

// ResultCache stores successful recommendation results. Failures are never cached.
type ResultCache interface {
	Get(ctx context.Context, req models.RecommendRequest) ([]models.WorkerRecommendation, bool)
	Set(ctx context.Context, req models.RecommendRequest, workers []models.WorkerRecommendation)
}

// RedisResultCache keeps results in Redis for a fixed TTL. Cache errors are logged and
// treated as misses so the backend is still consulted.
type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisResultCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisResultCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(req models.RecommendRequest) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%d|%s", strings.ToLower(req.Query), req.MaxResults, strings.ToLower(req.Location))
	return recommendationCachePrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *RedisResultCache) Get(ctx context.Context, req models.RecommendRequest) ([]models.WorkerRecommendation, bool) {
	data, err := c.client.Get(ctx, cacheKey(req)).Bytes()
	if err == redis.Nil {
		metrics.RecommendationCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Recommendation cache read failed", zap.Error(err))
		metrics.RecommendationCacheTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	var workers []models.WorkerRecommendation
	if err := json.Unmarshal(data, &workers); err != nil {
		c.logger.Warn("Dropping corrupt recommendation cache entry", zap.Error(err))
		_ = c.client.Del(ctx, cacheKey(req)).Err()
		metrics.RecommendationCacheTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.RecommendationCacheTotal.WithLabelValues("hit").Inc()
	return workers, true
}

func (c *RedisResultCache) Set(ctx context.Context, req models.RecommendRequest, workers []models.WorkerRecommendation) {
	b, err := json.Marshal(workers)
	if err != nil {
		c.logger.Warn("Failed to encode recommendations for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, cacheKey(req), b, c.ttl).Err(); err != nil {
		c.logger.Warn("Recommendation cache write failed", zap.Error(err))
	}
}
