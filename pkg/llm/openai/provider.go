// Package openai 提供 OpenAI 兼容 API 的供应商实现。
// 同时注册 deepseek 与 siliconflow 两个别名，它们只是默认地址和模型不同。
//
// 基本用法示例：
//
//	import _ "github.com/kart-io/seeksense/pkg/llm/openai"
//
//	chat, err := llm.NewChatProvider("openai", map[string]any{
//	    "api_key":    "your-api-key",
//	    "chat_model": "gpt-4o-mini",
//	})
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/seeksense/pkg/llm"
	"github.com/kart-io/seeksense/pkg/utils/httpclient"
)

// ProviderName 是 OpenAI 供应商的名称标识符。
const ProviderName = "openai"

// 兼容服务的默认配置。
var presets = map[string]Config{
	ProviderName: {
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL:   "https://api.deepseek.com/v1",
		ChatModel: "deepseek-chat",
	},
	"siliconflow": {
		BaseURL:    "https://api.siliconflow.cn/v1",
		EmbedModel: "BAAI/bge-m3",
		ChatModel:  "Qwen/Qwen2.5-7B-Instruct",
	},
}

func init() {
	for name := range presets {
		name := name
		llm.RegisterProvider(name, func(config map[string]any) (llm.Provider, error) {
			return newNamedProvider(name, config)
		})
	}
}

// Config OpenAI 供应商配置。
type Config struct {
	// BaseURL API 基础地址，可设置为任意兼容 API 地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Dimensions 请求的向量维度，0 表示使用模型默认值。
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// Organization 组织 ID（可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Temperature 生成温度，0 表示使用 API 默认值。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 最大生成 token 数，0 表示使用 API 默认值。
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`
}

// Provider OpenAI 兼容供应商实现。
type Provider struct {
	name   string
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	return newNamedProvider(ProviderName, configMap)
}

func newNamedProvider(name string, configMap map[string]any) (*Provider, error) {
	preset := presets[name]
	cfg := &Config{
		BaseURL:      llm.ConfigString(configMap, "base_url", preset.BaseURL),
		APIKey:       llm.ConfigString(configMap, "api_key", ""),
		EmbedModel:   llm.ConfigString(configMap, "embed_model", preset.EmbedModel),
		ChatModel:    llm.ConfigString(configMap, "chat_model", preset.ChatModel),
		Dimensions:   llm.ConfigInt(configMap, "dimensions", 0),
		Timeout:      llm.ConfigDuration(configMap, "timeout", 120*time.Second),
		MaxRetries:   llm.ConfigInt(configMap, "max_retries", 3),
		Organization: llm.ConfigString(configMap, "organization", ""),
		MaxTokens:    llm.ConfigInt(configMap, "max_tokens", 0),
	}
	if v, ok := configMap["temperature"].(float64); ok {
		cfg.Temperature = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api_key 是必需的", name)
	}

	p := NewProviderWithConfig(cfg)
	p.name = name
	return p, nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		name:   ProviderName,
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return p.name
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req, err := p.newRequest(ctx, "/embeddings")
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	payload := embeddingRequest{Model: p.config.EmbedModel, Input: texts, Dimensions: p.config.Dimensions}
	if err := p.client.PostJSON(req, payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s embeddings: %w", llm.ErrProvider, p.name, err)
	}

	// 按 index 回填确保顺序与输入一致
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	if err := llm.CheckEmbeddings(len(texts), embeddings, p.config.Dimensions); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      llm.Message `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	req, err := p.newRequest(ctx, "/chat/completions")
	if err != nil {
		return "", err
	}

	payload := chatRequest{
		Model:       p.config.ChatModel,
		Messages:    messages,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}

	var resp chatResponse
	if err := p.client.PostJSON(req, payload, &resp); err != nil {
		return "", fmt.Errorf("%w: %s chat: %w", llm.ErrProvider, p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s chat: 未返回响应内容", llm.ErrProvider, p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	return p.Chat(ctx, llm.BuildMessages(prompt, systemPrompt))
}

func (p *Provider) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	if p.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", p.config.Organization)
	}
	return req, nil
}

var _ llm.Provider = (*Provider)(nil)
