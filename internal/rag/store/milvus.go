package store

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/pkg/component/milvus"
)

// MilvusConfig MilvusStore 的集合配置。
type MilvusConfig struct {
	// Collection 集合名称。
	Collection string
	// Dimension 向量维度。
	Dimension int
	// Schema 集合布局。
	Schema *Schema
}

// milvusClient 是 MilvusStore 用到的 pkg/component/milvus 方法子集。
type milvusClient interface {
	CreateCollection(ctx context.Context, schema *milvus.CollectionSchema) error
	Insert(ctx context.Context, collection string, data *milvus.InsertData) (int64, error)
	Search(ctx context.Context, collection string, vector []float32, topK int, outputFields []string) ([]milvus.SearchResult, error)
	Query(ctx context.Context, collection, expr string, outputFields []string) ([]map[string]any, error)
	GetCollectionStats(ctx context.Context, collection string) (int64, error)
	Close(ctx context.Context) error
}

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client milvusClient
	cfg    MilvusConfig
}

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client, cfg MilvusConfig) (*MilvusStore, error) {
	return newMilvusStore(client, cfg)
}

func newMilvusStore(client milvusClient, cfg MilvusConfig) (*MilvusStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("milvus store: collection name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("milvus store: dimension must be positive")
	}
	if cfg.Schema == nil {
		s, err := NewSchema(SchemaFreeText, FieldLimits{})
		if err != nil {
			return nil, err
		}
		cfg.Schema = s
	}
	return &MilvusStore{client: client, cfg: cfg}, nil
}

// EnsureCollection 创建集合（已存在时仅加载）。
func (s *MilvusStore) EnsureCollection(ctx context.Context) error {
	schema := &milvus.CollectionSchema{
		Name:        s.cfg.Collection,
		Description: "seeksense chunk records (" + s.cfg.Schema.Name + ")",
		Dimension:   s.cfg.Dimension,
		MetaFields:  s.cfg.Schema.MetaFields(),
	}
	if err := s.client.CreateCollection(ctx, schema); err != nil {
		return fmt.Errorf("%w: %w", ErrIndex, err)
	}
	return nil
}

// Insert 批量写入分块记录。没有向量的记录被跳过。
func (s *MilvusStore) Insert(ctx context.Context, records []*model.ChunkRecord, embeddings map[string][]float32) (int, error) {
	data := &milvus.InsertData{Metadata: map[string][]any{}}

	for _, rec := range records {
		vec, ok := embeddings[rec.ID]
		if !ok {
			continue
		}
		if len(vec) != s.cfg.Dimension {
			return 0, fmt.Errorf("%w: %w: chunk %s has %d, collection expects %d",
				ErrIndex, ErrDimensionMismatch, rec.ID, len(vec), s.cfg.Dimension)
		}

		row := s.cfg.Schema.Row(s.cfg.Schema.Truncate(rec))
		data.IDs = append(data.IDs, rec.ID)
		data.Embeddings = append(data.Embeddings, vec)
		for name, v := range row {
			data.Metadata[name] = append(data.Metadata[name], v)
		}
	}

	if len(data.IDs) == 0 {
		return 0, nil
	}

	n, err := s.client.Insert(ctx, s.cfg.Collection, data)
	if err != nil {
		return 0, fmt.Errorf("%w: insert into milvus: %w", ErrIndex, err)
	}
	return int(n), nil
}

// Search 执行向量相似度搜索。COSINE 度量下分数越高越相似。
func (s *MilvusStore) Search(ctx context.Context, vector []float32, limit int) ([]*model.SearchHit, error) {
	if limit <= 0 {
		return []*model.SearchHit{}, nil
	}

	results, err := s.client.Search(ctx, s.cfg.Collection, vector, limit, s.cfg.Schema.OutputFields())
	if err != nil {
		return nil, fmt.Errorf("%w: search milvus: %w", ErrIndex, err)
	}

	hits := make([]*model.SearchHit, 0, len(results))
	for _, r := range results {
		rec := s.cfg.Schema.Record(r.ID, r.Metadata)
		hits = append(hits, &model.SearchHit{ChunkRecord: *rec, Score: r.Score})
	}
	return hits, nil
}

// FetchByIDs 先用一次 in 查询批量查找，失败时逐个查找并忽略单个失败。
func (s *MilvusStore) FetchByIDs(ctx context.Context, ids []string) ([]*model.ChunkRecord, error) {
	if len(ids) == 0 {
		return []*model.ChunkRecord{}, nil
	}

	rows, err := s.client.Query(ctx, s.cfg.Collection, milvus.InExpr(milvus.PrimaryField, ids), s.cfg.Schema.OutputFields())
	if err == nil {
		out := make([]*model.ChunkRecord, 0, len(rows))
		for _, row := range rows {
			out = append(out, s.cfg.Schema.Record("", row))
		}
		return out, nil
	}

	logger.Warnw("batch chunk lookup failed, falling back to single lookups",
		"collection", s.cfg.Collection, "ids", len(ids), "error", err.Error())

	out := make([]*model.ChunkRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.FetchOne(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// FetchOne 按 ID 查找单个分块。
func (s *MilvusStore) FetchOne(ctx context.Context, id string) (*model.ChunkRecord, error) {
	rows, err := s.client.Query(ctx, s.cfg.Collection, milvus.EqExpr(milvus.PrimaryField, id), s.cfg.Schema.OutputFields())
	if err != nil {
		return nil, fmt.Errorf("%w: lookup %s: %w", ErrIndex, id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, id)
	}
	return s.cfg.Schema.Record("", rows[0]), nil
}

// Count 获取集合中的记录数。
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.GetCollectionStats(ctx, s.cfg.Collection)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIndex, err)
	}
	return n, nil
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// 确保 MilvusStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusStore)(nil)
