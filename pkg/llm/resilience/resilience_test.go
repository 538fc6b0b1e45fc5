package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/seeksense/pkg/llm"
	"github.com/kart-io/seeksense/pkg/utils/httpclient"
)

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("重试后成功", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), fastRetry(3), func() error {
			calls++
			if calls < 3 {
				return io.ErrUnexpectedEOF
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("次数用尽返回最后的错误", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), fastRetry(2), func() error {
			calls++
			return &httpclient.StatusError{StatusCode: http.StatusBadGateway}
		})
		assert.True(t, httpclient.IsStatus(err, http.StatusBadGateway))
		assert.Equal(t, 2, calls)
	})

	t.Run("不可重试错误立即返回", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), fastRetry(5), func() error {
			calls++
			return &httpclient.StatusError{StatusCode: http.StatusUnauthorized}
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("上下文取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := fastRetry(5)
		cfg.InitialDelay = time.Second
		err := RetryWithBackoff(ctx, cfg, func() error {
			cancel()
			return io.EOF
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute, HalfOpenMaxCalls: 1})
	now := time.Now()
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.False(t, called)

	t.Run("超时后半开并在成功后关闭", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		require.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, 0, cb.Stats().Failures)
	})

	t.Run("半开失败重新打开", func(t *testing.T) {
		cb.Reset()
		_ = cb.Execute(func() error { return boom })
		_ = cb.Execute(func() error { return boom })
		now = now.Add(2 * time.Minute)
		_ = cb.Execute(func() error { return boom })
		assert.Equal(t, StateOpen, cb.State())
		assert.Equal(t, "open", cb.Stats().State)
	})
}

type flakyEmbedder struct {
	failures int
	calls    int
}

func (f *flakyEmbedder) Name() string { return "flaky" }

func (f *flakyEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("%w: %w", llm.ErrProvider, &httpclient.StatusError{StatusCode: http.StatusServiceUnavailable})
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f *flakyEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func TestEmbeddingProvider(t *testing.T) {
	inner := &flakyEmbedder{failures: 2}
	p := NewEmbeddingProvider(inner, fastRetry(3), nil)

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, "flaky", p.Name())
	assert.Equal(t, StateClosed, p.CircuitBreaker().State())
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"上下文取消", context.Canceled, false},
		{"熔断打开", ErrCircuitBreakerOpen, false},
		{"向量格式错误", fmt.Errorf("x: %w", llm.ErrMalformedEmbedding), false},
		{"限流", &httpclient.StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"请求超时", &httpclient.StatusError{StatusCode: http.StatusRequestTimeout}, true},
		{"服务端错误", fmt.Errorf("%w: %w", llm.ErrProvider, &httpclient.StatusError{StatusCode: 500}), true},
		{"客户端错误", &httpclient.StatusError{StatusCode: http.StatusBadRequest}, false},
		{"连接中断", io.ErrUnexpectedEOF, true},
		{"普通错误", errors.New("other"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}
