// Package resilience 为向量化与生成调用提供重试和熔断。
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrCircuitBreakerOpen 熔断器处于打开状态时返回。
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 最大尝试次数（包括首次调用）。
	MaxAttempts int
	// InitialDelay 初始退避时间。
	InitialDelay time.Duration
	// MaxDelay 退避时间上限。
	MaxDelay time.Duration
	// Multiplier 指数退避倍数。
	Multiplier float64
	// RetryableErrors 判断错误是否可重试，为 nil 时使用 IsRetryableError。
	RetryableErrors func(error) bool
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		Multiplier:      2.0,
		RetryableErrors: IsRetryableError,
	}
}

func (c *RetryConfig) retryable(err error) bool {
	if c.RetryableErrors == nil {
		return IsRetryableError(err)
	}
	return c.RetryableErrors(err)
}

// nextDelay 计算下一次退避时间。
func (c *RetryConfig) nextDelay(d time.Duration) time.Duration {
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	next := time.Duration(float64(d) * mult)
	if c.MaxDelay > 0 && next > c.MaxDelay {
		next = c.MaxDelay
	}
	return next
}

// CircuitBreakerConfig 熔断器配置。
type CircuitBreakerConfig struct {
	// MaxFailures 连续失败多少次后打开熔断器。
	MaxFailures int
	// Timeout 打开状态持续多久后进入半开。
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的探测调用数。
	HalfOpenMaxCalls int
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置。
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// State 熔断器状态。
type State int

const (
	// StateClosed 正常放行。
	StateClosed State = iota
	// StateOpen 拒绝所有调用。
	StateOpen
	// StateHalfOpen 放行有限的探测调用。
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats 熔断器统计信息。
type Stats struct {
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

// CircuitBreaker 熔断器。
type CircuitBreaker struct {
	name   string
	config *CircuitBreakerConfig
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	halfOpenCalls int
}

// NewCircuitBreaker 创建熔断器，name 仅用于日志。
func NewCircuitBreaker(name string, config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
	}
}

// Execute 在熔断器保护下执行 fn。
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) < cb.config.Timeout {
			return ErrCircuitBreakerOpen
		}
		cb.transition(StateHalfOpen)
		cb.halfOpenCalls = 1
		return nil
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			return ErrCircuitBreakerOpen
		}
		cb.halfOpenCalls++
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state != StateClosed {
			cb.transition(StateClosed)
		}
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()
	switch {
	case cb.state == StateHalfOpen:
		cb.transition(StateOpen)
	case cb.state == StateClosed && cb.failures >= cb.config.MaxFailures:
		cb.transition(StateOpen)
	}
}

// transition 调用方需持有锁。
func (cb *CircuitBreaker) transition(to State) {
	logger.Infow("熔断器状态变更",
		"breaker", cb.name,
		"from", cb.state.String(),
		"to", to.String(),
		"failures", cb.failures,
	)
	cb.state = to
	cb.halfOpenCalls = 0
}

// State 返回当前状态。
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats 返回统计信息。
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		State:       cb.state.String(),
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
	}
}

// Reset 将熔断器恢复为关闭状态。
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCalls = 0
}

// RetryWithBackoff 按指数退避重试 fn，直到成功、遇到不可重试错误或次数用尽。
func RetryWithBackoff(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	attempts := max(config.MaxAttempts, 1)
	delay := config.InitialDelay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts || !config.retryable(err) {
			return err
		}

		logger.Debugw("调用失败，准备重试",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = config.nextDelay(delay)
	}
	return err
}

// RetryWithCircuitBreaker 每次尝试都经过熔断器。熔断器打开时立即返回。
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return RetryWithBackoff(ctx, config, func() error {
		return cb.Execute(fn)
	})
}
