package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("test", DefaultPoolConfig())
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	if p.Name() != "test" {
		t.Errorf("池名称不匹配: 期望 test, 实际 %s", p.Name())
	}
	if p.Cap() != 100 {
		t.Errorf("池容量不匹配: 期望 100, 实际 %d", p.Cap())
	}
}

func TestNewPoolInvalidConfig(t *testing.T) {
	_, err := NewPool("bad", &Config{Capacity: 0})
	if !errors.Is(err, ErrInvalidPoolConfig) {
		t.Errorf("期望 ErrInvalidPoolConfig, 实际 %v", err)
	}
}

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 10, ExpiryDuration: 5 * time.Second})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		if err := p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}); err != nil {
			t.Errorf("提交任务失败: %v", err)
			wg.Done()
		}
	}
	wg.Wait()

	if counter.Load() != 100 {
		t.Errorf("任务执行数不匹配: 期望 100, 实际 %d", counter.Load())
	}
	if s := p.Stats(); s.SubmittedTasks != 100 {
		t.Errorf("提交统计不匹配: 期望 100, 实际 %d", s.SubmittedTasks)
	}
}

func TestPoolForEachCanceledContext(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 2})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	err = p.ForEach(ctx, 5, func(context.Context, int) { calls.Add(1) })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("期望 context.Canceled, 实际 %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("上下文已取消时不应执行任务, 实际执行 %d 次", calls.Load())
	}
}

func TestPoolReleaseTimeout(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 2})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}

	var done atomic.Bool
	if err := p.Submit(func() {
		time.Sleep(20 * time.Millisecond)
		done.Store(true)
	}); err != nil {
		t.Fatalf("提交任务失败: %v", err)
	}

	if err := p.ReleaseTimeout(time.Second); err != nil {
		t.Fatalf("ReleaseTimeout 失败: %v", err)
	}
	if !done.Load() {
		t.Error("ReleaseTimeout 应等待运行中的任务结束")
	}
	if err := p.ReleaseTimeout(time.Second); err != nil {
		t.Errorf("重复释放应返回 nil, 实际 %v", err)
	}
	if err := p.Submit(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("期望 ErrPoolClosed, 实际 %v", err)
	}
}

func TestPoolForEach(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 3})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	var running, peak atomic.Int32
	seen := make([]atomic.Bool, 20)
	err = p.ForEach(context.Background(), len(seen), func(_ context.Context, i int) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		seen[i].Store(true)
		running.Add(-1)
	})
	if err != nil {
		t.Fatalf("ForEach 失败: %v", err)
	}

	for i := range seen {
		if !seen[i].Load() {
			t.Errorf("下标 %d 未执行", i)
		}
	}
	if peak.Load() > 3 {
		t.Errorf("并发超过容量: %d", peak.Load())
	}
}

func TestPoolClosed(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 1})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	p.Release()
	p.Release()

	if err := p.Submit(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("期望 ErrPoolClosed, 实际 %v", err)
	}
	if err := p.ForEach(context.Background(), 2, func(context.Context, int) {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("期望 ErrPoolClosed, 实际 %v", err)
	}
}
