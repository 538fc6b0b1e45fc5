package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/seeksense/internal/model"
)

func memRecord(doc string, idx, total int, content string) *model.ChunkRecord {
	return &model.ChunkRecord{
		ID:          model.ChunkID(doc, idx),
		DocumentID:  doc,
		ChunkIndex:  idx,
		TotalChunks: total,
		Title:       doc,
		Content:     content,
	}
}

func TestMemoryStoreInsertSkipsMissingEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, nil)

	recs := []*model.ChunkRecord{memRecord("a", 0, 2, "x"), memRecord("a", 1, 2, "y")}
	n, err := s.Insert(ctx, recs, map[string][]float32{recs[0].ID: {1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, _ := s.Count(ctx)
	assert.Equal(t, int64(1), count)

	_, err = s.FetchOne(ctx, recs[1].ID)
	assert.True(t, errors.Is(err, ErrChunkNotFound))
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	s := NewMemoryStore(3, nil)
	rec := memRecord("a", 0, 1, "x")

	_, err := s.Insert(context.Background(), []*model.ChunkRecord{rec}, map[string][]float32{rec.ID: {1, 0}})
	assert.ErrorIs(t, err, ErrIndex)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	count, _ := s.Count(context.Background())
	assert.Zero(t, count, "维度错误时整批不写入")
}

func TestMemoryStoreSearchOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, nil)

	recs := []*model.ChunkRecord{memRecord("a", 0, 1, "a"), memRecord("b", 0, 1, "b"), memRecord("c", 0, 1, "c")}
	_, err := s.Insert(ctx, recs, map[string][]float32{
		recs[0].ID: {0, 1},
		recs[1].ID: {1, 0},
		recs[2].ID: {1, 1},
	})
	require.NoError(t, err)

	hits, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b_chunk_0", hits[0].ID)
	assert.Equal(t, "c_chunk_0", hits[1].ID)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, "b", hits[0].DocumentID)

	empty, err := s.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStoreFetch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, nil)
	recs := []*model.ChunkRecord{memRecord("a", 0, 2, "x"), memRecord("a", 1, 2, "y")}
	_, err := s.Insert(ctx, recs, map[string][]float32{recs[0].ID: {1}, recs[1].ID: {1}})
	require.NoError(t, err)

	got, err := s.FetchByIDs(ctx, []string{"a_chunk_1", "missing", "a_chunk_0"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a_chunk_1", got[0].ID)
	assert.Equal(t, "y", got[0].Content)

	one, err := s.FetchOne(ctx, "a_chunk_0")
	require.NoError(t, err)
	one.Content = "mutated"
	again, _ := s.FetchOne(ctx, "a_chunk_0")
	assert.Equal(t, "x", again.Content, "返回副本")
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore(0, nil)
	_, err := s.FetchOne(ctx, "x")
	assert.ErrorIs(t, err, ErrIndex)
	assert.False(t, IsNotFound(err))
}
