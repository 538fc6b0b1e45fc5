package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
	"github.com/kart-io/seeksense/internal/rag/metrics"
	"github.com/kart-io/seeksense/internal/rag/store"
	"github.com/kart-io/seeksense/pkg/infra/pool"
	"github.com/kart-io/seeksense/pkg/llm"
)

var (
	// ErrCatalogDisabled 表示未配置文档目录。
	ErrCatalogDisabled = errors.New("document catalog disabled")
	// ErrCacheDisabled 表示未启用查询缓存。
	ErrCacheDisabled = errors.New("query cache disabled")
)

// Service 定义检索服务接口。
type Service interface {
	// Index 索引一批文档。
	Index(ctx context.Context, docs []*model.Document) (*IndexReport, error)
	// Search 检索分块或重组后的文档。
	Search(ctx context.Context, req *SearchRequest) (*SearchResult, error)
	// Query 检索并生成回答。
	Query(ctx context.Context, query string, topK int) (*model.QueryResult, error)
	// Stats 获取索引与服务统计信息。
	Stats(ctx context.Context) (map[string]any, error)
	// GetDocument 读取文档目录记录。
	GetDocument(ctx context.Context, id string) (*model.CatalogEntry, error)
	// ClearCache 清空查询缓存，返回删除的键数。
	ClearCache(ctx context.Context) (int, error)
}

// ServiceConfig 服务配置。
type ServiceConfig struct {
	Collection        string
	IndexerConfig     *IndexerConfig
	RetrieverConfig   *RetrieverConfig
	ReassemblerConfig ReassemblerConfig
	GeneratorConfig   *GeneratorConfig
	// GuardEnabled 是否启用查询安全检查。
	GuardEnabled bool
}

// RAGService 组合 Indexer、Retriever、Generator 和 Guard 提供完整的检索服务。
type RAGService struct {
	indexer   *Indexer
	retriever *Retriever
	generator *Generator
	guard     *Guard
	cache     *QueryCache
	catalog   store.Catalog
	store     store.VectorStore
	embedder  llm.EmbeddingProvider
	chat      llm.ChatProvider
	config    *ServiceConfig
	metrics   *metrics.RAGMetrics
}

// NewRAGService 创建服务实例。cache、catalog 和 workers 可以为 nil。
func NewRAGService(
	vectorStore store.VectorStore,
	embedder llm.EmbeddingProvider,
	chat llm.ChatProvider,
	cache *QueryCache,
	catalog store.Catalog,
	workers *pool.Pool,
	config *ServiceConfig,
	m *metrics.RAGMetrics,
) (*RAGService, error) {
	if config == nil {
		config = &ServiceConfig{GuardEnabled: true}
	}
	if m == nil {
		m = metrics.GetRAGMetrics()
	}

	indexer, err := NewIndexer(vectorStore, embedder, workers, catalog, config.IndexerConfig, m)
	if err != nil {
		return nil, err
	}
	reassembler := NewReassembler(vectorStore, config.ReassemblerConfig, m)

	return &RAGService{
		indexer:   indexer,
		retriever: NewRetriever(embedder, reassembler, config.RetrieverConfig),
		generator: NewGenerator(chat, config.GeneratorConfig, m),
		guard:     NewGuard(config.GuardEnabled),
		cache:     cache,
		catalog:   catalog,
		store:     vectorStore,
		embedder:  embedder,
		chat:      chat,
		config:    config,
		metrics:   m,
	}, nil
}

// Indexer 返回服务使用的索引器。
func (s *RAGService) Indexer() *Indexer {
	return s.indexer
}

// Index 索引一批文档。
func (s *RAGService) Index(ctx context.Context, docs []*model.Document) (*IndexReport, error) {
	return s.indexer.IndexDocuments(ctx, docs)
}

// Search 检索分块或重组后的文档。
func (s *RAGService) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	start := time.Now()
	result, err := s.retriever.Retrieve(ctx, req)
	s.metrics.RecordRetrieval(time.Since(start), err)
	return result, err
}

// Query 执行问答：安全检查、缓存、重组检索、生成回答。
// 被判定为不相关的查询直接返回拒答，不访问索引。
func (s *RAGService) Query(ctx context.Context, query string, topK int) (result *model.QueryResult, err error) {
	query = textutil.Normalize(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	cacheHit := false
	defer func() {
		s.metrics.RecordQuery(cacheHit, err)
	}()

	if cached, cerr := s.cache.Get(ctx, query, topK); cerr == nil && cached != nil {
		cacheHit = true
		cached.Cached = true
		return cached, nil
	}

	verdict := s.guard.Check(query)
	result = &model.QueryResult{
		Query:          query,
		Classification: verdict.Classification,
		Intent:         verdict.Intent,
		Entities:       verdict.Entities,
		Documents:      []*model.ReassembledDocument{},
	}
	if !verdict.Allowed() {
		s.metrics.RecordRejected()
		logger.Infow("query rejected", "query", textutil.Abbreviate(query, 80), "dangerous", verdict.Dangerous, "intent", verdict.Intent)
		result.Response = RefusalResponse
		return result, nil
	}

	reassemble := true
	found, err := s.Search(ctx, &SearchRequest{Query: query, Limit: topK, Reassemble: &reassemble})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	result.Documents = found.Documents
	result.Response = s.generator.Generate(ctx, query, found.Documents)

	// 缓存写入失败不影响返回，错误已在 cache.Set 中记录
	_ = s.cache.Set(ctx, query, topK, result)
	return result, nil
}

// Stats 获取索引与服务统计信息。
func (s *RAGService) Stats(ctx context.Context) (map[string]any, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := map[string]any{
		"collection":     s.config.Collection,
		"chunk_count":    count,
		"embed_provider": s.embedder.Name(),
		"chat_provider":  s.chat.Name(),
		"catalog":        s.catalog != nil,
	}
	if cacheStats, err := s.cache.Stats(ctx); err == nil {
		stats["cache"] = cacheStats
	}
	stats["metrics"] = s.metrics.Stats()
	return stats, nil
}

// GetDocument 读取文档目录记录。
func (s *RAGService) GetDocument(ctx context.Context, id string) (*model.CatalogEntry, error) {
	if s.catalog == nil {
		return nil, ErrCatalogDisabled
	}
	return s.catalog.Get(ctx, id)
}

// ClearCache 清空查询缓存。
func (s *RAGService) ClearCache(ctx context.Context) (int, error) {
	if !s.cache.enabled() {
		return 0, ErrCacheDisabled
	}
	return s.cache.Clear(ctx)
}

var _ Service = (*RAGService)(nil)
