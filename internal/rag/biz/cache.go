package biz

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
	"github.com/kart-io/seeksense/pkg/utils/json"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// DefaultQueryCacheConfig 返回默认配置。
func DefaultQueryCacheConfig() *QueryCacheConfig {
	return &QueryCacheConfig{
		Enabled:   false,
		TTL:       time.Hour,
		KeyPrefix: "seeksense:query:",
	}
}

// QueryCache 查询结果缓存。
type QueryCache struct {
	redis  goredis.UniversalClient
	config *QueryCacheConfig
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis goredis.UniversalClient, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = DefaultQueryCacheConfig()
	}
	if config.TTL <= 0 {
		config.TTL = time.Hour
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

func (c *QueryCache) enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// cacheKey 基于归一化查询和结果数量生成缓存键（SHA-256）。
func (c *QueryCache) cacheKey(query string, limit int) string {
	return c.config.KeyPrefix + textutil.HashString(textutil.Normalize(query)+"\x00"+strconv.Itoa(limit))
}

// Get 从缓存获取查询结果。未命中返回 nil, nil。
func (c *QueryCache) Get(ctx context.Context, query string, limit int) (*model.QueryResult, error) {
	if !c.enabled() {
		return nil, nil
	}

	key := c.cacheKey(query, limit)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			logger.Debugw("cache miss", "key", key)
			return nil, nil
		}
		logger.Warnw("failed to get from cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var result model.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("failed to unmarshal cached result", "error", err.Error(), "key", key)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Debugw("cache hit", "key", key, "documents", len(result.Documents))
	return &result, nil
}

// Set 将查询结果写入缓存。
func (c *QueryCache) Set(ctx context.Context, query string, limit int, result *model.QueryResult) error {
	if !c.enabled() {
		return nil
	}

	key := c.cacheKey(query, limit)
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("failed to marshal result for caching", "error", err.Error())
		return err
	}

	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set cache", "error", err.Error(), "key", key)
		return err
	}
	return nil
}

// Clear 清除所有查询缓存，返回删除的键数。
func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	if !c.enabled() {
		return 0, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	logger.Infow("cleared query cache", "deleted_count", deleted)
	return deleted, nil
}

// Stats 获取缓存统计信息。
func (c *QueryCache) Stats(ctx context.Context) (map[string]any, error) {
	if !c.enabled() {
		return map[string]any{"enabled": false}, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	keys := 0
	for iter.Next(ctx) {
		keys++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]any{
		"enabled":    true,
		"key_count":  keys,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}
