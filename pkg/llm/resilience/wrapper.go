package resilience

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/kart-io/seeksense/pkg/llm"
	"github.com/kart-io/seeksense/pkg/utils/httpclient"
)

// EmbeddingProvider 带重试和熔断的 Embedding 供应商。
type EmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// NewEmbeddingProvider 包装 Embedding 供应商，配置为 nil 时使用默认值。
func NewEmbeddingProvider(provider llm.EmbeddingProvider, retry *RetryConfig, cbConfig *CircuitBreakerConfig) *EmbeddingProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &EmbeddingProvider{
		provider: provider,
		retry:    retry,
		cb:       NewCircuitBreaker(provider.Name()+"/embed", cbConfig),
	}
}

// Embed 为多个文本生成向量嵌入。
func (p *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := RetryWithCircuitBreaker(ctx, p.retry, p.cb, func() error {
		var err error
		out, err = p.provider.Embed(ctx, texts)
		return err
	})
	return out, err
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := RetryWithCircuitBreaker(ctx, p.retry, p.cb, func() error {
		var err error
		out, err = p.provider.EmbedSingle(ctx, text)
		return err
	})
	return out, err
}

// Name 返回被包装供应商的名称。
func (p *EmbeddingProvider) Name() string { return p.provider.Name() }

// CircuitBreaker 返回内部熔断器。
func (p *EmbeddingProvider) CircuitBreaker() *CircuitBreaker { return p.cb }

// ChatProvider 带重试和熔断的 Chat 供应商。
type ChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// NewChatProvider 包装 Chat 供应商，配置为 nil 时使用默认值。
func NewChatProvider(provider llm.ChatProvider, retry *RetryConfig, cbConfig *CircuitBreakerConfig) *ChatProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &ChatProvider{
		provider: provider,
		retry:    retry,
		cb:       NewCircuitBreaker(provider.Name()+"/chat", cbConfig),
	}
}

// Chat 进行多轮对话。
func (p *ChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	var out string
	err := RetryWithCircuitBreaker(ctx, p.retry, p.cb, func() error {
		var err error
		out, err = p.provider.Chat(ctx, messages)
		return err
	})
	return out, err
}

// Generate 根据提示生成文本。
func (p *ChatProvider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	var out string
	err := RetryWithCircuitBreaker(ctx, p.retry, p.cb, func() error {
		var err error
		out, err = p.provider.Generate(ctx, prompt, systemPrompt)
		return err
	})
	return out, err
}

// Name 返回被包装供应商的名称。
func (p *ChatProvider) Name() string { return p.provider.Name() }

// CircuitBreaker 返回内部熔断器。
func (p *ChatProvider) CircuitBreaker() *CircuitBreaker { return p.cb }

// IsRetryableError 判断错误是否值得重试。
// 上下文取消、熔断打开、响应格式错误以及 4xx（429、408 除外）不重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitBreakerOpen) || errors.Is(err, llm.ErrMalformedEmbedding) {
		return false
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable() || statusErr.StatusCode == 408
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

var (
	_ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)
	_ llm.ChatProvider      = (*ChatProvider)(nil)
)
