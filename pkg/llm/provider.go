// Package llm 提供统一的模型供应商抽象层。
// Embedding 与 Chat 可以使用不同供应商的模型，通过注册表按名称创建。
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrProvider 表示外部模型服务调用失败。
	ErrProvider = errors.New("llm provider error")

	// ErrMalformedEmbedding 表示供应商返回的向量数量或维度不符合预期。
	ErrMalformedEmbedding = errors.New("malformed embedding response")
)

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入，结果顺序与输入一致。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Chat 进行多轮对话。
	Chat(ctx context.Context, messages []Message) (string, error)

	// Generate 根据提示生成文本（单轮）。
	Generate(ctx context.Context, prompt string, systemPrompt string) (string, error)

	// Name 返回供应商名称。
	Name() string
}

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Provider 同时支持 Embedding 和 Chat 的完整供应商。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// BuildMessages 组装单轮对话消息，systemPrompt 为空时省略系统消息。
func BuildMessages(prompt, systemPrompt string) []Message {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return append(messages, Message{Role: RoleUser, Content: prompt})
}

// CheckEmbeddings 校验返回的向量数量与维度。dim <= 0 时只要求所有向量维度一致且非空。
func CheckEmbeddings(want int, vectors [][]float32, dim int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: expected %d vectors, got %d", ErrMalformedEmbedding, want, len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: vector %d is empty", ErrMalformedEmbedding, i)
		}
		if dim <= 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrMalformedEmbedding, i, len(v), dim)
		}
	}
	return nil
}

// ============================================================================
// 配置解析
// ============================================================================

// ConfigString 从配置 map 读取非空字符串。
func ConfigString(config map[string]any, key string, fallback string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// ConfigInt 从配置 map 读取正整数。
func ConfigInt(config map[string]any, key string, fallback int) int {
	if v, ok := config[key].(int); ok && v > 0 {
		return v
	}
	return fallback
}

// ConfigDuration 从配置 map 读取正时长。
func ConfigDuration(config map[string]any, key string, fallback time.Duration) time.Duration {
	if v, ok := config[key].(time.Duration); ok && v > 0 {
		return v
	}
	return fallback
}

// ============================================================================
// 供应商注册表
// ============================================================================

// ProviderFactory 供应商工厂函数类型。
type ProviderFactory func(config map[string]any) (Provider, error)

// EmbeddingProviderFactory Embedding 供应商工厂函数类型。
type EmbeddingProviderFactory func(config map[string]any) (EmbeddingProvider, error)

// ChatProviderFactory Chat 供应商工厂函数类型。
type ChatProviderFactory func(config map[string]any) (ChatProvider, error)

var registry = &providerRegistry{
	providers:          make(map[string]ProviderFactory),
	embeddingProviders: make(map[string]EmbeddingProviderFactory),
	chatProviders:      make(map[string]ChatProviderFactory),
}

type providerRegistry struct {
	mu                 sync.RWMutex
	providers          map[string]ProviderFactory
	embeddingProviders map[string]EmbeddingProviderFactory
	chatProviders      map[string]ChatProviderFactory
}

// RegisterProvider 注册完整供应商工厂。
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// RegisterEmbeddingProvider 注册 Embedding 供应商工厂。
func RegisterEmbeddingProvider(name string, factory EmbeddingProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.embeddingProviders[name] = factory
}

// RegisterChatProvider 注册 Chat 供应商工厂。
func RegisterChatProvider(name string, factory ChatProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.chatProviders[name] = factory
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
// 优先查找专用 Embedding 工厂，其次查找完整供应商工厂。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.embeddingProviders[name]
	full, fullOK := registry.providers[name]
	registry.mu.RUnlock()

	switch {
	case ok:
		return factory(config)
	case fullOK:
		return full(config)
	}
	return nil, fmt.Errorf("unknown embedding provider: %s", name)
}

// NewChatProvider 根据名称创建 Chat 供应商实例。
// 优先查找专用 Chat 工厂，其次查找完整供应商工厂。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.chatProviders[name]
	full, fullOK := registry.providers[name]
	registry.mu.RUnlock()

	switch {
	case ok:
		return factory(config)
	case fullOK:
		return full(config)
	}
	return nil, fmt.Errorf("unknown chat provider: %s", name)
}

// ListProviders 列出所有已注册的供应商名称（已排序）。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]struct{})
	for name := range registry.providers {
		seen[name] = struct{}{}
	}
	for name := range registry.embeddingProviders {
		seen[name] = struct{}{}
	}
	for name := range registry.chatProviders {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
