package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/seeksense/pkg/utils/json"
)

// EmbeddingCacheConfig Embedding 缓存配置。
type EmbeddingCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// DefaultEmbeddingCacheConfig 返回默认的 Embedding 缓存配置。
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       24 * time.Hour,
		KeyPrefix: "seeksense:emb:",
	}
}

// CachedEmbeddingProvider 在 Redis 中缓存文本向量的包装器。
// 缓存故障只记录日志，不影响向量化结果。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	redis    goredis.UniversalClient
	config   *EmbeddingCacheConfig
}

// NewCachedEmbeddingProvider 创建带缓存的 Embedding Provider。
func NewCachedEmbeddingProvider(provider EmbeddingProvider, redis goredis.UniversalClient, config *EmbeddingCacheConfig) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{
		provider: provider,
		redis:    redis,
		config:   config,
	}
}

// cacheKey 键中包含供应商名称，切换模型后不会命中旧向量。
func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(c.provider.Name() + "\x00" + text))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

func (c *CachedEmbeddingProvider) enabled() bool {
	return c.config.Enabled && c.redis != nil
}

// EmbedSingle 生成单个文本的 Embedding（带缓存）。
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Embed 批量生成 Embedding，命中缓存的文本不再请求供应商。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.enabled() || len(texts) == 0 {
		return c.provider.Embed(ctx, texts)
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
	}

	embeddings := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	cached, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warnw("embedding cache read failed, falling back to provider", "error", err.Error())
		cached = make([]interface{}, len(texts))
	}
	for i, v := range cached {
		if s, ok := v.(string); ok {
			var vec []float32
			if err := json.Unmarshal([]byte(s), &vec); err == nil && len(vec) > 0 {
				embeddings[i] = vec
				continue
			}
			_ = c.redis.Del(ctx, keys[i]).Err()
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}

	if len(missTexts) == 0 {
		logger.Debugw("all embeddings from cache", "total", len(texts))
		return embeddings, nil
	}

	logger.Debugw("embedding cache miss", "total", len(texts), "uncached", len(missTexts))
	fresh, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := CheckEmbeddings(len(missTexts), fresh, 0); err != nil {
		return nil, err
	}

	pipe := c.redis.Pipeline()
	for i, idx := range missIdx {
		embeddings[idx] = fresh[i]
		data, err := json.Marshal(fresh[i])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[idx], data, c.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnw("failed to cache embeddings", "error", err.Error(), "count", len(missIdx))
	}

	return embeddings, nil
}

// Name 返回底层 provider 的名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name()
}

// ClearCache 清除所有 Embedding 缓存，返回删除的键数量。
func (c *CachedEmbeddingProvider) ClearCache(ctx context.Context) (int, error) {
	if !c.enabled() {
		return 0, nil
	}

	deleted := 0
	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 100).Iterator()
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

	logger.Infow("cleared embedding cache", "deleted_count", deleted)
	return deleted, nil
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)
