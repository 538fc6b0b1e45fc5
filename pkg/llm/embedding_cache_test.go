package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider 记录底层被请求的文本数量。
type countingProvider struct {
	mockProvider
	texts atomic.Int32
}

func (c *countingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.texts.Add(int32(len(texts)))
	return c.mockProvider.Embed(ctx, texts)
}

func setupTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis 不可用，跳过测试")
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedEmbeddingProviderDisabled(t *testing.T) {
	base := &countingProvider{mockProvider: mockProvider{name: "mock"}}
	cached := NewCachedEmbeddingProvider(base, nil, nil)

	_, err := cached.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, int32(4), base.texts.Load())
	assert.Equal(t, "mock", cached.Name())
}

func TestCachedEmbeddingProviderRedis(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	base := &countingProvider{mockProvider: mockProvider{name: "mock"}}
	cfg := &EmbeddingCacheConfig{Enabled: true, TTL: time.Minute, KeyPrefix: "seeksense:test:emb:"}
	cached := NewCachedEmbeddingProvider(base, client, cfg)
	_, _ = cached.ClearCache(ctx)
	defer func() { _, _ = cached.ClearCache(ctx) }()

	first, err := cached.Embed(ctx, []string{"মোবাইল", "জুতা"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), base.texts.Load())

	// 第二次仅请求未缓存的文本
	second, err := cached.Embed(ctx, []string{"জুতা", "জামা", "মোবাইল"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), base.texts.Load())
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])

	single, err := cached.EmbedSingle(ctx, "জামা")
	require.NoError(t, err)
	assert.Equal(t, second[1], single)
	assert.Equal(t, int32(3), base.texts.Load())

	deleted, err := cached.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
}
