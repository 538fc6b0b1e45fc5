package biz

import (
	"context"
	"errors"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
	"github.com/kart-io/seeksense/pkg/llm"
)

var (
	// ErrEmptyQuery 表示归一化后的查询为空。
	ErrEmptyQuery = errors.New("empty query")
	// ErrQueryEmbedFailed 表示查询向量化失败。
	ErrQueryEmbedFailed = errors.New("query embedding failed")
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 默认返回的结果数量。
	TopK int
	// Reassemble 默认是否重组文档。
	Reassemble bool
}

// SearchRequest 检索请求。
type SearchRequest struct {
	Query string
	// Limit 为 0 时使用 TopK。
	Limit int
	// Reassemble 为 nil 时使用配置的默认值。
	Reassemble *bool
}

// Retriever 负责查询归一化、向量化与重组检索。
type Retriever struct {
	embedder    llm.EmbeddingProvider
	reassembler *Reassembler
	config      RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(embedder llm.EmbeddingProvider, reassembler *Reassembler, config *RetrieverConfig) *Retriever {
	cfg := RetrieverConfig{TopK: 5, Reassemble: true}
	if config != nil {
		cfg = *config
		if cfg.TopK <= 0 {
			cfg.TopK = 5
		}
	}
	return &Retriever{
		embedder:    embedder,
		reassembler: reassembler,
		config:      cfg,
	}
}

// Retrieve 执行检索。
func (r *Retriever) Retrieve(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	query := textutil.Normalize(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	limit := req.Limit
	if limit <= 0 {
		limit = r.config.TopK
	}
	reassemble := r.config.Reassemble
	if req.Reassemble != nil {
		reassemble = *req.Reassemble
	}

	vector, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		logger.Warnw("查询向量化失败", "provider", r.embedder.Name(), "error", err.Error())
		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedFailed, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedFailed, llm.ErrMalformedEmbedding)
	}

	return r.reassembler.SearchWithReassembly(ctx, vector, limit, reassemble)
}
