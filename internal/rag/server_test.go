package ragsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/seeksense/pkg/infra/pool"
)

func TestComponentsClose(t *testing.T) {
	var order []string
	c := &Components{}
	c.onClose(func(context.Context) { order = append(order, "milvus") })
	c.onClose(func(context.Context) { order = append(order, "mongo") })
	c.onClose(func(context.Context) { order = append(order, "pool") })

	c.Close(context.Background())
	assert.Equal(t, []string{"pool", "mongo", "milvus"}, order, "按创建的逆序释放")

	c.Close(context.Background())
	assert.Len(t, order, 3, "重复关闭不再执行")
}

func TestDrainTimeout(t *testing.T) {
	t.Run("无截止时间", func(t *testing.T) {
		assert.Equal(t, poolDrainTimeout, drainTimeout(context.Background()))
	})

	t.Run("使用剩余时间", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		d := drainTimeout(ctx)
		assert.Greater(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	})

	t.Run("已过期", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		assert.Equal(t, time.Millisecond, drainTimeout(ctx))
	})
}

func TestComponentsCloseDrainsIndexPool(t *testing.T) {
	workers, err := pool.NewPool("rag-index", pool.IndexPoolConfig(2))
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, workers.Submit(func() {
		time.Sleep(20 * time.Millisecond)
		close(done)
	}))

	c := &Components{}
	c.onClose(func(ctx context.Context) {
		require.NoError(t, workers.ReleaseTimeout(drainTimeout(ctx)))
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Close(ctx)

	select {
	case <-done:
	default:
		t.Fatal("关闭前应等待索引任务结束")
	}
}
