package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配 worker 队列
	PreAlloc bool
	// Nonblocking 池满时提交是否直接返回 ErrPoolOverload
	Nonblocking bool
	// MaxBlockingTasks 阻塞模式下最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
	// PanicHandler 恐慌处理函数
	PanicHandler func(any)
}

// DefaultPoolConfig 返回默认池配置
func DefaultPoolConfig() *Config {
	return &Config{
		Capacity:       100,
		ExpiryDuration: 10 * time.Second,
	}
}

// IndexPoolConfig 返回索引写入池配置，workers 为并发批次数
func IndexPoolConfig(workers int) *Config {
	return &Config{
		Capacity:         workers,
		ExpiryDuration:   30 * time.Second,
		MaxBlockingTasks: 0,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity 必须大于 0", ErrInvalidPoolConfig)
	}
	if c.MaxBlockingTasks < 0 {
		return fmt.Errorf("%w: max blocking tasks 不能为负数", ErrInvalidPoolConfig)
	}
	return nil
}

// Pool represents a worker pool.
type Pool struct {
	name     string
	pool     *ants.Pool
	config   *Config
	stats    poolStatsCounter
	closed   atomic.Bool
	closedMu sync.Mutex
}

type poolStatsCounter struct {
	SubmittedTasks atomic.Int64
	CompletedTasks atomic.Int64
	RejectedTasks  atomic.Int64
	PanicRecovered atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	Name           string `json:"name"`
	Capacity       int    `json:"capacity"`
	Running        int    `json:"running"`
	Waiting        int    `json:"waiting"`
	SubmittedTasks int64  `json:"submitted_tasks"`
	CompletedTasks int64  `json:"completed_tasks"`
	RejectedTasks  int64  `json:"rejected_tasks"`
	PanicRecovered int64  `json:"panic_recovered"`
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{name: name, config: config}

	pool, err := ants.NewPool(config.Capacity, p.antsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = pool

	logger.Infow("Worker pool created",
		"name", name,
		"capacity", config.Capacity,
	)
	return p, nil
}

func (p *Pool) antsOptions() []ants.Option {
	handler := p.config.PanicHandler
	if handler == nil {
		handler = func(r any) {
			logger.Errorw("Worker panic recovered", "pool", p.name, "panic", r)
		}
	}
	return []ants.Option{
		ants.WithExpiryDuration(p.config.ExpiryDuration),
		ants.WithPreAlloc(p.config.PreAlloc),
		ants.WithNonblocking(p.config.Nonblocking),
		ants.WithMaxBlockingTasks(p.config.MaxBlockingTasks),
		ants.WithPanicHandler(func(r any) {
			p.stats.PanicRecovered.Add(1)
			handler(r)
		}),
	}
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Cap 返回池容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.stats.SubmittedTasks.Add(1)
	err := p.pool.Submit(func() {
		task()
		p.stats.CompletedTasks.Add(1)
	})
	if err != nil {
		p.stats.RejectedTasks.Add(1)
		switch {
		case errors.Is(err, ants.ErrPoolOverload):
			return ErrPoolOverload
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// ForEach 为 [0, n) 的每个下标提交一个任务并等待全部结束。
// 返回第一个提交错误；上下文取消后尚未开始的任务被跳过。
func (p *Pool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	var (
		wg     sync.WaitGroup
		subErr error
	)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			subErr = err
			break
		}
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			fn(ctx, i)
		})
		if err != nil {
			wg.Done()
			subErr = fmt.Errorf("提交任务 %d 失败: %w", i, err)
			break
		}
	}
	wg.Wait()
	return subErr
}

// Release 关闭池并释放资源
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return
	}
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name)
}

// ReleaseTimeout 关闭池并等待运行中的任务结束，超时返回错误
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("释放池 %s: %w", p.name, err)
	}
	logger.Infow("Worker pool released", "name", p.name)
	return nil
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		Name:           p.name,
		Capacity:       p.pool.Cap(),
		Running:        p.pool.Running(),
		Waiting:        p.pool.Waiting(),
		SubmittedTasks: p.stats.SubmittedTasks.Load(),
		CompletedTasks: p.stats.CompletedTasks.Load(),
		RejectedTasks:  p.stats.RejectedTasks.Load(),
		PanicRecovered: p.stats.PanicRecovered.Load(),
	}
}
