// Package ollama 提供本地 Ollama 服务的供应商实现。
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/seeksense/pkg/llm"
	"github.com/kart-io/seeksense/pkg/utils/httpclient"
)

// ProviderName 是 Ollama 供应商的名称标识符。
const ProviderName = "ollama"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	EmbedModel string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel  string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:11434",
		EmbedModel: "bge-m3",
		ChatModel:  "qwen2.5:7b",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider Ollama 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 Ollama 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	d := DefaultConfig()
	cfg := &Config{
		BaseURL:    llm.ConfigString(configMap, "base_url", d.BaseURL),
		EmbedModel: llm.ConfigString(configMap, "embed_model", d.EmbedModel),
		ChatModel:  llm.ConfigString(configMap, "chat_model", d.ChatModel),
		Timeout:    llm.ConfigDuration(configMap, "timeout", d.Timeout),
		MaxRetries: llm.ConfigInt(configMap, "max_retries", d.MaxRetries),
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Ollama 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	if err := p.post(ctx, "/api/embed", embedRequest{Model: p.config.EmbedModel, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if err := llm.CheckEmbeddings(len(texts), resp.Embeddings, 0); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
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
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message llm.Message `json:"message"`
	Done    bool        `json:"done"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	var resp chatResponse
	if err := p.post(ctx, "/api/chat", chatRequest{Model: p.config.ChatModel, Messages: messages}, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	return p.Chat(ctx, llm.BuildMessages(prompt, systemPrompt))
}

func (p *Provider) post(ctx context.Context, path string, payload, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	if err := p.client.PostJSON(req, payload, out); err != nil {
		return fmt.Errorf("%w: ollama %s: %w", llm.ErrProvider, path, err)
	}
	return nil
}

var _ llm.Provider = (*Provider)(nil)
