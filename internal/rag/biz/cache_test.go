package biz

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
)

// 辅助函数：创建测试用 Redis 客户端
func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis 不可用，跳过测试")
	}
	client.FlushDB(ctx)
	return client
}

func TestNewQueryCache_WithNilConfig(t *testing.T) {
	cache := NewQueryCache(nil, nil)
	require.NotNil(t, cache.config)
	assert.False(t, cache.config.Enabled)
	assert.Equal(t, time.Hour, cache.config.TTL)
	assert.Equal(t, "seeksense:query:", cache.config.KeyPrefix)
}

func TestQueryCache_CacheKey(t *testing.T) {
	cache := NewQueryCache(nil, &QueryCacheConfig{Enabled: true, KeyPrefix: "test:"})

	k1 := cache.cacheKey("ফোনের দাম", 5)
	k2 := cache.cacheKey("  ফোনের   দাম ", 5)
	k3 := cache.cacheKey("ফোনের দাম", 3)
	k4 := cache.cacheKey("জুতার দাম", 5)

	assert.Equal(t, k1, k2, "归一化后相同的查询使用同一个键")
	assert.NotEqual(t, k1, k3, "结果数量不同使用不同的键")
	assert.NotEqual(t, k1, k4)
	assert.Len(t, k1, len("test:")+64)
	assert.Equal(t, "test:"+textutil.HashString("ফোনের দাম\x005"), k1)
}

func TestQueryCache_Disabled(t *testing.T) {
	ctx := context.Background()
	var nilCache *QueryCache

	got, err := nilCache.Get(ctx, "q", 1)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, nilCache.Set(ctx, "q", 1, &model.QueryResult{}))

	stats, err := NewQueryCache(nil, nil).Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, stats["enabled"])
}

func TestQueryCache_SetGet(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	cache := NewQueryCache(client, &QueryCacheConfig{Enabled: true, TTL: time.Minute, KeyPrefix: "test:seeksense:"})

	got, err := cache.Get(ctx, "ফোন", 5)
	require.NoError(t, err)
	assert.Nil(t, got, "未命中返回 nil")

	result := &model.QueryResult{
		Query:          "ফোন",
		Classification: ClassRelevant,
		Documents:      []*model.ReassembledDocument{{DocumentID: "d1", Content: "ভালো ফোন", TopScore: 0.8, Complete: true}},
		Response:       "উত্তর",
	}
	require.NoError(t, cache.Set(ctx, "ফোন", 5, result))

	got, err = cache.Get(ctx, "ফোন", 5)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "উত্তর", got.Response)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "d1", got.Documents[0].DocumentID)

	ttl := client.TTL(ctx, cache.cacheKey("ফোন", 5)).Val()
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["key_count"])

	deleted, err := cache.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestQueryCache_CorruptedEntry(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	cache := NewQueryCache(client, &QueryCacheConfig{Enabled: true, TTL: time.Minute, KeyPrefix: "test:seeksense:"})

	key := cache.cacheKey("bad", 1)
	require.NoError(t, client.Set(ctx, key, "not-json", time.Minute).Err())

	_, err := cache.Get(ctx, "bad", 1)
	assert.Error(t, err)
	assert.Equal(t, int64(0), client.Exists(ctx, key).Val(), "损坏的缓存被删除")
}
