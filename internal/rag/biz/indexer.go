package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
	"github.com/kart-io/seeksense/internal/rag/metrics"
	"github.com/kart-io/seeksense/internal/rag/store"
	"github.com/kart-io/seeksense/pkg/id"
	"github.com/kart-io/seeksense/pkg/infra/pool"
	"github.com/kart-io/seeksense/pkg/llm"
)

// ErrNoDocuments 表示索引请求中没有文档。
var ErrNoDocuments = errors.New("no documents to index")

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// ChunkSize 分块大小（字符数）。
	ChunkSize int
	// ChunkOverlap 相邻分块重叠字符数。
	ChunkOverlap int
	// BatchSize 每个批次的文档数。
	BatchSize int
	// EmbedBatchSize 每次向量化请求的文本数。
	EmbedBatchSize int
	// EmbedTimeout 单次向量化请求超时。
	EmbedTimeout time.Duration
}

func (c *IndexerConfig) withDefaults() IndexerConfig {
	out := IndexerConfig{}
	if c != nil {
		out = *c
	}
	if out.ChunkSize == 0 {
		out.ChunkSize = textutil.DefaultChunkSize
		if out.ChunkOverlap == 0 {
			out.ChunkOverlap = textutil.DefaultChunkOverlap
		}
	}
	if out.BatchSize <= 0 {
		out.BatchSize = 100
	}
	if out.EmbedBatchSize <= 0 {
		out.EmbedBatchSize = 16
	}
	if out.EmbedTimeout <= 0 {
		out.EmbedTimeout = 30 * time.Second
	}
	return out
}

// IndexReport 一次索引运行的结果。
type IndexReport struct {
	// Documents 产生了分块的文档数。
	Documents int `json:"documents"`
	// EmptyDocuments 正文为空被跳过的文档数。
	EmptyDocuments int `json:"empty_documents"`
	// Chunks 生成的分块数。
	Chunks int `json:"chunks"`
	// Inserted 实际写入索引的分块数。
	Inserted int `json:"inserted"`
	// SkippedBatches 向量化失败被跳过的批次数。
	SkippedBatches int `json:"skipped_batches"`
	// FailedBatches 写入失败的批次数。
	FailedBatches int `json:"failed_batches"`
	// DocumentIDs 按提交顺序排列的文档 ID（含分配的 ID）。
	DocumentIDs []string `json:"document_ids"`
	Errors      []string `json:"errors,omitempty"`
}

// batchResult 单个批次的处理结果。
type batchResult struct {
	documents int
	empty     int
	chunks    int
	inserted  int
	skipped   bool
	failed    bool
	err       error
	entries   []*model.CatalogEntry
}

// Indexer 把文档切分、向量化后批量写入向量索引。
type Indexer struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	workers  *pool.Pool
	catalog  store.Catalog
	builder  *Builder
	config   IndexerConfig
	metrics  *metrics.RAGMetrics
}

// NewIndexer 创建索引器。catalog 可以为 nil；workers 为 nil 时批次串行处理。
func NewIndexer(
	vectorStore store.VectorStore,
	embedder llm.EmbeddingProvider,
	workers *pool.Pool,
	catalog store.Catalog,
	config *IndexerConfig,
	m *metrics.RAGMetrics,
) (*Indexer, error) {
	cfg := config.withDefaults()
	if err := textutil.ValidateChunkParams(cfg.ChunkSize, cfg.ChunkOverlap); err != nil {
		return nil, err
	}
	return &Indexer{
		store:    vectorStore,
		embedder: embedder,
		workers:  workers,
		catalog:  catalog,
		builder:  NewBuilder(cfg.ChunkSize, cfg.ChunkOverlap, nil),
		config:   cfg,
		metrics:  m,
	}, nil
}

// WithIDGenerator 替换文档 ID 生成器。
func (i *Indexer) WithIDGenerator(gen id.Generator) *Indexer {
	i.builder = NewBuilder(i.config.ChunkSize, i.config.ChunkOverlap, gen)
	return i
}

// IndexDocuments 索引一批文档。
//
// 文档按 BatchSize 分批交给工作池处理，批次之间不保证顺序。
// 向量化失败的批次被跳过并记录；写入失败的批次记入报告。
// 只有参数错误、集合初始化失败或上下文取消才返回 error。
func (i *Indexer) IndexDocuments(ctx context.Context, docs []*model.Document) (*IndexReport, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	if err := CheckDuplicateIDs(docs); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &IndexReport{DocumentIDs: make([]string, len(docs))}

	// 在任何网络调用之前分配 ID
	for n, doc := range docs {
		if doc.ID == "" {
			doc.ID = i.builder.ids.Generate()
		}
		report.DocumentIDs[n] = doc.ID
	}

	if err := i.store.EnsureCollection(ctx); err != nil {
		i.recordMetrics(report, err)
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	batches := splitBatches(docs, i.config.BatchSize)
	logger.Infow("indexing documents",
		"documents", len(docs),
		"batches", len(batches),
		"batch_size", i.config.BatchSize,
	)

	var mu sync.Mutex
	merge := func(n int, res *batchResult) {
		mu.Lock()
		defer mu.Unlock()
		report.Documents += res.documents
		report.EmptyDocuments += res.empty
		report.Chunks += res.chunks
		report.Inserted += res.inserted
		if res.skipped {
			report.SkippedBatches++
		}
		if res.failed {
			report.FailedBatches++
		}
		if res.err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("batch %d: %v", n, res.err))
		}
	}

	process := func(ctx context.Context, n int) {
		res := i.processBatch(ctx, n, batches[n])
		i.writeCatalog(ctx, res.entries)
		merge(n, res)
	}

	var runErr error
	if i.workers != nil {
		runErr = i.workers.ForEach(ctx, len(batches), process)
	} else {
		for n := range batches {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			process(ctx, n)
		}
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	i.recordMetrics(report, runErr)
	logger.Infow("indexing finished",
		"documents", report.Documents,
		"chunks", report.Chunks,
		"inserted", report.Inserted,
		"skipped_batches", report.SkippedBatches,
		"failed_batches", report.FailedBatches,
		"duration", time.Since(start).String(),
	)

	if runErr != nil {
		return report, fmt.Errorf("index documents: %w", runErr)
	}
	return report, nil
}

// processBatch 处理一个批次：构建分块记录、分段向量化、写入索引。
func (i *Indexer) processBatch(ctx context.Context, n int, docs []*model.Document) *batchResult {
	res := &batchResult{}

	var records []*model.ChunkRecord
	perDoc := make(map[string]int, len(docs))
	for _, doc := range docs {
		recs, err := i.builder.ChunkDocument(doc)
		if err != nil {
			res.failed, res.err = true, fmt.Errorf("chunk document %s: %w", doc.ID, err)
			res.entries = catalogEntries(docs, perDoc, model.DocumentFailed, res.err)
			return res
		}
		if len(recs) == 0 {
			res.empty++
			continue
		}
		res.documents++
		perDoc[doc.ID] = len(recs)
		records = append(records, recs...)
	}
	res.chunks = len(records)
	if len(records) == 0 {
		return res
	}

	embeddings, err := i.embed(ctx, records)
	if err != nil {
		logger.Warnw("embedding failed, batch skipped",
			"batch", n,
			"documents", len(docs),
			"chunks", len(records),
			"error", err.Error(),
		)
		res.skipped, res.err = true, err
		res.entries = catalogEntries(docs, perDoc, model.DocumentFailed, err)
		return res
	}

	inserted, err := i.store.Insert(ctx, records, embeddings)
	if err != nil {
		logger.Errorw("insert failed",
			"batch", n,
			"chunks", len(records),
			"error", err.Error(),
		)
		res.failed, res.err = true, err
		res.entries = catalogEntries(docs, perDoc, model.DocumentFailed, err)
		return res
	}

	res.inserted = inserted
	res.entries = catalogEntries(docs, perDoc, model.DocumentIndexed, nil)
	logger.Debugw("batch indexed", "batch", n, "chunks", len(records), "inserted", inserted)
	return res
}

// embed 按 EmbedBatchSize 分段请求向量，每段单独计时。任一段失败即整体失败。
func (i *Indexer) embed(ctx context.Context, records []*model.ChunkRecord) (map[string][]float32, error) {
	out := make(map[string][]float32, len(records))
	size := i.config.EmbedBatchSize

	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		texts := make([]string, 0, end-start)
		for _, rec := range records[start:end] {
			texts = append(texts, rec.Content)
		}

		vectors, err := i.embedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		for k, rec := range records[start:end] {
			out[rec.ID] = vectors[k]
		}
	}
	return out, nil
}

func (i *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, i.config.EmbedTimeout)
	defer cancel()

	vectors, err := i.embedder.Embed(ectx, texts)
	if err != nil {
		return nil, err
	}
	if err := llm.CheckEmbeddings(len(texts), vectors, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrProvider, err)
	}
	return vectors, nil
}

func (i *Indexer) writeCatalog(ctx context.Context, entries []*model.CatalogEntry) {
	if i.catalog == nil || len(entries) == 0 {
		return
	}
	if err := i.catalog.Upsert(ctx, entries); err != nil {
		logger.Warnw("catalog upsert failed", "entries", len(entries), "error", err.Error())
	}
}

func (i *Indexer) recordMetrics(report *IndexReport, err error) {
	if i.metrics == nil {
		return
	}
	i.metrics.RecordIndexing(report.Documents, report.Inserted, report.SkippedBatches, err)
}

// catalogEntries 为批次内产生了分块的文档生成目录记录。
func catalogEntries(docs []*model.Document, chunks map[string]int, status model.DocumentStatus, err error) []*model.CatalogEntry {
	now := time.Now().UTC()
	entries := make([]*model.CatalogEntry, 0, len(docs))
	for _, doc := range docs {
		total, ok := chunks[doc.ID]
		if !ok && status == model.DocumentIndexed {
			continue
		}
		entry := &model.CatalogEntry{
			ID:          doc.ID,
			Title:       doc.Title,
			Kind:        doc.Kind(),
			TotalChunks: total,
			Status:      status,
			UpdatedAt:   now,
		}
		if status == model.DocumentIndexed {
			entry.Inserted = total
		}
		if err != nil {
			entry.Error = err.Error()
		}
		entries = append(entries, entry)
	}
	return entries
}

func splitBatches(docs []*model.Document, size int) [][]*model.Document {
	var batches [][]*model.Document
	for start := 0; start < len(docs); start += size {
		batches = append(batches, docs[start:min(start+size, len(docs))])
	}
	return batches
}
