// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/seeksense/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// name 是 flag 前缀（embedding / chat）。
	name string

	// Provider 供应商名称（jina, ollama, openai, deepseek, siliconflow）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥，为空时读取 <PROVIDER>_API_KEY 环境变量。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Dimensions 请求的向量维度，0 表示模型默认值（仅 Embedding）。
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`

	// Task Jina 的任务类型，例如 retrieval.passage（仅 Embedding）。
	Task string `json:"task" mapstructure:"task"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries HTTP 层最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Resilience 是否启用重试与熔断包装。
	Resilience bool `json:"resilience" mapstructure:"resilience"`

	// BreakerFailures 连续失败多少次后熔断。
	BreakerFailures int `json:"breaker-failures" mapstructure:"breaker-failures"`

	// BreakerTimeout 熔断持续时间。
	BreakerTimeout time.Duration `json:"breaker-timeout" mapstructure:"breaker-timeout"`
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		name:            "embedding",
		Provider:        "jina",
		Model:           "jina-embeddings-v3",
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		Resilience:      true,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		name:            "chat",
		Provider:        "ollama",
		BaseURL:         "http://localhost:11434",
		Model:           "qwen2.5:7b",
		Timeout:         120 * time.Second,
		MaxRetries:      1,
		Resilience:      true,
		BreakerFailures: 5,
		BreakerTimeout:  60 * time.Second,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。未设置的字段不写入，由供应商使用默认值。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	m := map[string]any{
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
	set := func(key, v string) {
		if v != "" {
			m[key] = v
		}
	}
	set("base_url", o.BaseURL)
	set("api_key", o.APIKey)
	set("embed_model", o.Model)
	set("chat_model", o.Model)
	set("task", o.Task)
	set("organization", o.Organization)
	if o.Dimensions > 0 {
		m["dimensions"] = o.Dimensions
	}
	return m
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + o.name + "."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (jina, ollama, openai, deepseek, siliconflow).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "API base URL, empty for the provider default.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "API key, falls back to the <PROVIDER>_API_KEY env var.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.IntVar(&o.Dimensions, p+"dimensions", o.Dimensions, "Requested embedding dimensions, 0 for the model default.")
	fs.StringVar(&o.Task, p+"task", o.Task, "Embedding task hint (jina only).")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum number of HTTP retries.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization ID (openai only).")
	fs.BoolVar(&o.Resilience, p+"resilience", o.Resilience, "Wrap the provider with retry and circuit breaker.")
	fs.IntVar(&o.BreakerFailures, p+"breaker-failures", o.BreakerFailures, "Consecutive failures before the circuit opens.")
	fs.DurationVar(&o.BreakerTimeout, p+"breaker-timeout", o.BreakerTimeout, "How long the circuit stays open.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("%s.provider is required", o.name))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", o.name))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s.max-retries cannot be negative", o.name))
	}
	if o.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("%s.dimensions cannot be negative", o.name))
	}
	if o.Provider != "ollama" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api-key is required for provider %q", o.name, o.Provider))
	}
	return errs
}

// Complete reads the API key from <PROVIDER>_API_KEY when it is not set.
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" && o.Provider != "" {
		o.APIKey = os.Getenv(APIKeyEnv(o.Provider))
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 5
	}
	return nil
}

// APIKeyEnv returns the environment variable holding a provider's API key.
func APIKeyEnv(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}
