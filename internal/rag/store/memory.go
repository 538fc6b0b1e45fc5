package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
)

type memoryRow struct {
	record *model.ChunkRecord
	vector []float32
	seq    int
}

// MemoryStore 是进程内的向量存储，按余弦相似度做精确检索。
// 用于开发模式和测试。
type MemoryStore struct {
	mu        sync.RWMutex
	rows      map[string]*memoryRow
	seq       int
	dimension int
	schema    *Schema
}

// NewMemoryStore 创建内存存储。dimension 为 0 时不校验向量维度。
func NewMemoryStore(dimension int, schema *Schema) *MemoryStore {
	if schema == nil {
		schema, _ = NewSchema(SchemaFreeText, FieldLimits{})
	}
	return &MemoryStore{
		rows:      make(map[string]*memoryRow),
		dimension: dimension,
		schema:    schema,
	}
}

// EnsureCollection 无操作。
func (s *MemoryStore) EnsureCollection(context.Context) error {
	return nil
}

// Insert 写入带向量的记录，相同 ID 覆盖旧记录。
func (s *MemoryStore) Insert(ctx context.Context, records []*model.ChunkRecord, embeddings map[string][]float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIndex, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]*memoryRow, 0, len(records))
	for _, rec := range records {
		vec, ok := embeddings[rec.ID]
		if !ok {
			continue
		}
		if s.dimension > 0 && len(vec) != s.dimension {
			return 0, fmt.Errorf("%w: %w: chunk %s has %d, collection expects %d",
				ErrIndex, ErrDimensionMismatch, rec.ID, len(vec), s.dimension)
		}
		stored := s.schema.Record(rec.ID, s.schema.Row(s.schema.Truncate(rec)))
		pending = append(pending, &memoryRow{record: stored, vector: append([]float32(nil), vec...)})
	}

	for _, row := range pending {
		s.seq++
		row.seq = s.seq
		s.rows[row.record.ID] = row
	}
	return len(pending), nil
}

// Search 返回余弦相似度最高的 limit 个记录。分数相同时先写入的在前。
func (s *MemoryStore) Search(ctx context.Context, vector []float32, limit int) ([]*model.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndex, err)
	}
	if limit <= 0 {
		return []*model.SearchHit{}, nil
	}

	s.mu.RLock()
	type scored struct {
		row   *memoryRow
		score float32
	}
	all := make([]scored, 0, len(s.rows))
	for _, row := range s.rows {
		all = append(all, scored{row: row, score: float32(textutil.CosineSimilarity(vector, row.vector))})
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].row.seq < all[j].row.seq
	})
	if len(all) > limit {
		all = all[:limit]
	}

	hits := make([]*model.SearchHit, len(all))
	for i, sc := range all {
		hits[i] = &model.SearchHit{ChunkRecord: *sc.row.record, Score: sc.score}
	}
	return hits, nil
}

// FetchByIDs 返回存在的记录，顺序与 ids 一致。
func (s *MemoryStore) FetchByIDs(ctx context.Context, ids []string) ([]*model.ChunkRecord, error) {
	out := make([]*model.ChunkRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.FetchOne(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// FetchOne 按 ID 查找单个分块。
func (s *MemoryStore) FetchOne(ctx context.Context, id string) (*model.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: lookup %s: %w", ErrIndex, id, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, id)
	}
	rec := *row.record
	return &rec, nil
}

// Count 返回记录数。
func (s *MemoryStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rows)), nil
}

// Close 无操作。
func (s *MemoryStore) Close(context.Context) error {
	return nil
}

var _ VectorStore = (*MemoryStore)(nil)
