package store

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/pkg/component/milvus"
)

func TestNewSchema(t *testing.T) {
	free, err := NewSchema(SchemaFreeText, FieldLimits{})
	require.NoError(t, err)
	assert.Equal(t, 100000, free.Limits.Content)

	legacy, err := NewSchema(SchemaLegacy, FieldLimits{})
	require.NoError(t, err)
	assert.Equal(t, FieldLimits{Title: 1000, Content: 10000}, legacy.Limits)
	assert.Equal(t, []string{milvus.PrimaryField, FieldTitle, FieldContent, FieldChunkIndex, FieldTotalChunks}, legacy.OutputFields())

	custom, err := NewSchema(SchemaLegacy, FieldLimits{Content: 20})
	require.NoError(t, err)
	assert.Equal(t, 20, custom.Limits.Content)
	assert.Equal(t, 1000, custom.Limits.Title)

	_, err = NewSchema("xml", FieldLimits{})
	assert.Error(t, err)
}

func TestTruncateIsRuneSafe(t *testing.T) {
	s, err := NewSchema(SchemaLegacy, FieldLimits{Title: 3, Content: 4})
	require.NoError(t, err)

	rec := &model.ChunkRecord{ID: "d_chunk_0", Title: "মোবাইল", Content: "বাংলা ভাষা"}
	out := s.Truncate(rec)

	assert.Equal(t, []rune("মোবাইল")[:3], []rune(out.Title))
	assert.Equal(t, 4, utf8.RuneCountInString(out.Content))
	assert.Equal(t, "মোবাইল", rec.Title, "原记录不变")
}

func TestRowRecordRoundTrip(t *testing.T) {
	t.Run("自由文本", func(t *testing.T) {
		s, _ := NewSchema(SchemaFreeText, FieldLimits{})
		rec := &model.ChunkRecord{
			ID: "doc_chunk_2", DocumentID: "doc", ChunkIndex: 2, TotalChunks: 3,
			Title: "ফোন", Content: "ভালো ফোন", Category: "electronics",
		}
		got := s.Record(rec.ID, s.Row(rec))
		assert.Equal(t, rec, got)
	})

	t.Run("配对模式", func(t *testing.T) {
		s, _ := NewSchema(SchemaPaired, FieldLimits{})
		rec := &model.ChunkRecord{
			ID: "p1", DocumentID: "p1", TotalChunks: 1,
			Paired: &model.PairedFields{LeftTitle: "ফোন", RightTitle: "কভার", RightCategory: "accessories"},
		}
		row := s.Row(rec)
		_, hasContent := row[FieldContent]
		assert.False(t, hasContent)

		got := s.Record("", map[string]any{
			milvus.PrimaryField: "p1",
			FieldLeftTitle:      "ফোন",
			FieldRightTitle:     "কভার",
			FieldRightCategory:  "accessories",
			FieldTotalChunks:    int64(1),
		})
		assert.Equal(t, "p1", got.ID)
		assert.Equal(t, "ফোন", got.Title)
		assert.Equal(t, rec.Paired, got.Paired)
		assert.Equal(t, model.PayloadPaired, got.Kind())
	})
}

func TestFitBytes(t *testing.T) {
	s := strings.Repeat("ব", 10) // 每个字符 3 字节
	out := fitBytes(s, 10)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, 9, len(out))
	assert.Equal(t, "abc", fitBytes("abc", 10))
}
