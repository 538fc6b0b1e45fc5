package store

import (
	"context"
	"errors"

	"github.com/kart-io/seeksense/internal/model"
)

var (
	// ErrIndex 包装向量索引服务的失败（插入、检索、统计）。
	ErrIndex = errors.New("vector index error")

	// ErrChunkNotFound 表示按 ID 查找的分块不存在。
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrDimensionMismatch 表示向量维度与集合配置不一致。
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// VectorStore 定义分块记录的向量存储接口。
type VectorStore interface {
	// EnsureCollection 创建（或加载）集合。
	EnsureCollection(ctx context.Context) error

	// Insert 写入带向量的分块记录，没有向量的记录被跳过。返回实际写入的行数。
	Insert(ctx context.Context, records []*model.ChunkRecord, embeddings map[string][]float32) (int, error)

	// Search 按相似度降序返回最多 limit 个命中。
	Search(ctx context.Context, vector []float32, limit int) ([]*model.SearchHit, error)

	// FetchByIDs 批量按 ID 查找，只返回成功取到的记录。
	FetchByIDs(ctx context.Context, ids []string) ([]*model.ChunkRecord, error)

	// FetchOne 按 ID 查找单个分块，不存在时返回 ErrChunkNotFound。
	FetchOne(ctx context.Context, id string) (*model.ChunkRecord, error)

	// Count 返回集合中的记录数。
	Count(ctx context.Context) (int64, error)

	// Close 释放连接。
	Close(ctx context.Context) error
}

// Catalog 记录已索引文档的分块数量与状态。
type Catalog interface {
	// Upsert 写入或覆盖目录条目。
	Upsert(ctx context.Context, entries []*model.CatalogEntry) error

	// Get 读取单个文档的目录条目，不存在时返回 ErrDocumentNotFound。
	Get(ctx context.Context, documentID string) (*model.CatalogEntry, error)

	// Close 释放连接。
	Close(ctx context.Context) error
}

// ErrDocumentNotFound 表示目录中没有该文档。
var ErrDocumentNotFound = errors.New("document not found in catalog")

// IsNotFound 报告 err 是否表示分块不存在。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrChunkNotFound)
}
