package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkIDRoundTrip(t *testing.T) {
	id := ChunkID("01HZX3", 7)
	assert.Equal(t, "01HZX3_chunk_7", id)

	doc, idx, ok := ParseChunkID(id)
	assert.True(t, ok)
	assert.Equal(t, "01HZX3", doc)
	assert.Equal(t, 7, idx)
}

func TestParseChunkID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantDoc string
		wantIdx int
		wantOK  bool
	}{
		{name: "标准格式", id: "doc_chunk_0", wantDoc: "doc", wantIdx: 0, wantOK: true},
		{name: "文档 ID 含下划线", id: "my_doc_chunk_12", wantDoc: "my_doc", wantIdx: 12, wantOK: true},
		{name: "文档 ID 含分隔符", id: "a_chunk_b_chunk_3", wantDoc: "a_chunk_b", wantIdx: 3, wantOK: true},
		{name: "无后缀视为整篇文档", id: "product-42", wantDoc: "product-42", wantIdx: 0},
		{name: "后缀非数字", id: "doc_chunk_x", wantDoc: "doc_chunk_x", wantIdx: 0},
		{name: "负数序号", id: "doc_chunk_-1", wantDoc: "doc_chunk_-1", wantIdx: 0},
		{name: "仅有后缀", id: "_chunk_1", wantDoc: "_chunk_1", wantIdx: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, idx, ok := ParseChunkID(tt.id)
			assert.Equal(t, tt.wantDoc, doc)
			assert.Equal(t, tt.wantIdx, idx)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestDocumentKind(t *testing.T) {
	free := &Document{Title: "t", Body: "b"}
	assert.Equal(t, PayloadFreeText, free.Kind())
	assert.Equal(t, "b", free.ChunkText())

	paired := &Document{Paired: &PairedFields{LeftTitle: "ফোন", RightTitle: "কভার", RightCategory: "accessories"}}
	assert.Equal(t, PayloadPaired, paired.Kind())
	assert.Equal(t, "ফোন কভার accessories", paired.ChunkText())

	empty := &Document{Paired: &PairedFields{}}
	assert.Equal(t, PayloadFreeText, empty.Kind())

	rec := &ChunkRecord{Paired: paired.Paired}
	assert.Equal(t, PayloadPaired, rec.Kind())
}
