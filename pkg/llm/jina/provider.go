// Package jina 提供 Jina AI Embeddings API 的向量化供应商。
// 只支持 Embedding，多语言模型对孟加拉语效果较好。
package jina

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/seeksense/pkg/llm"
	"github.com/kart-io/seeksense/pkg/utils/httpclient"
)

// ProviderName 是 Jina 供应商的名称标识符。
const ProviderName = "jina"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Config Jina 供应商配置。
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	APIKey     string        `json:"-" mapstructure:"api_key"`
	EmbedModel string        `json:"embed_model" mapstructure:"embed_model"`
	Task       string        `json:"task" mapstructure:"task"`
	Dimensions int           `json:"dimensions" mapstructure:"dimensions"`
	BatchSize  int           `json:"batch_size" mapstructure:"batch_size"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.jina.ai/v1",
		EmbedModel: "jina-embeddings-v3",
		BatchSize:  16,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
	}
}

// Provider Jina Embedding 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 Jina 供应商。
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	d := DefaultConfig()
	cfg := &Config{
		BaseURL:    llm.ConfigString(configMap, "base_url", d.BaseURL),
		APIKey:     llm.ConfigString(configMap, "api_key", ""),
		EmbedModel: llm.ConfigString(configMap, "embed_model", d.EmbedModel),
		Task:       llm.ConfigString(configMap, "task", ""),
		Dimensions: llm.ConfigInt(configMap, "dimensions", 0),
		BatchSize:  llm.ConfigInt(configMap, "batch_size", d.BatchSize),
		Timeout:    llm.ConfigDuration(configMap, "timeout", d.Timeout),
		MaxRetries: llm.ConfigInt(configMap, "max_retries", d.MaxRetries),
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("jina: api_key 是必需的")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Jina 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type inputText struct {
	Text string `json:"text"`
}

type embeddingRequest struct {
	Model      string      `json:"model"`
	Input      []inputText `json:"input"`
	Task       string      `json:"task,omitempty"`
	Dimensions int         `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed 按 BatchSize 分批请求，结果顺序与输入一致。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.config.BatchSize {
		end := min(start+p.config.BatchSize, len(texts))
		batch, err := p.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (p *Provider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/embeddings", nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	payload := embeddingRequest{
		Model:      p.config.EmbedModel,
		Input:      make([]inputText, len(texts)),
		Task:       p.config.Task,
		Dimensions: p.config.Dimensions,
	}
	for i, t := range texts {
		payload.Input[i] = inputText{Text: t}
	}

	var resp embeddingResponse
	if err := p.client.PostJSON(req, payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: jina embeddings: %w", llm.ErrProvider, err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	if err := llm.CheckEmbeddings(len(texts), vectors, p.config.Dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

var _ llm.EmbeddingProvider = (*Provider)(nil)
