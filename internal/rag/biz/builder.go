package biz

import (
	"errors"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
	"github.com/kart-io/seeksense/pkg/id"
)

// ErrDuplicateDocumentID 表示同一批次中出现重复的文档 ID。
var ErrDuplicateDocumentID = errors.New("duplicate document id in batch")

var defaultIDs id.Generator = id.NewULIDGenerator()

// BuildChunkRecords 为文档的每个分块生成记录，ID 为 {doc.ID}_chunk_{i}。
func BuildChunkRecords(doc *model.Document, chunks []string) []*model.ChunkRecord {
	records := make([]*model.ChunkRecord, len(chunks))
	for i, text := range chunks {
		records[i] = &model.ChunkRecord{
			ID:          model.ChunkID(doc.ID, i),
			DocumentID:  doc.ID,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			Title:       doc.Title,
			Content:     text,
			Category:    doc.Category,
			Description: doc.Description,
			Paired:      doc.Paired,
		}
	}
	return records
}

// ChunkDocument 切分文档并生成分块记录。doc.ID 为空时分配新的 ULID。
// 归一化后正文为空的文档不产生记录。
func ChunkDocument(doc *model.Document, size, overlap int) ([]*model.ChunkRecord, error) {
	return NewBuilder(size, overlap, defaultIDs).ChunkDocument(doc)
}

// Builder 把文档切分成分块记录。
type Builder struct {
	size    int
	overlap int
	ids     id.Generator
}

// NewBuilder 创建分块记录构建器。gen 为 nil 时使用 ULID。
func NewBuilder(size, overlap int, gen id.Generator) *Builder {
	if gen == nil {
		gen = defaultIDs
	}
	return &Builder{size: size, overlap: overlap, ids: gen}
}

// ChunkDocument 切分单个文档。
func (b *Builder) ChunkDocument(doc *model.Document) ([]*model.ChunkRecord, error) {
	if doc.ID == "" {
		doc.ID = b.ids.Generate()
	}

	text := textutil.Normalize(doc.ChunkText())
	if text == "" {
		logger.Warnw("document has empty body, skipped", "document_id", doc.ID)
		return nil, nil
	}

	chunks, err := textutil.SplitIntoChunks(text, b.size, b.overlap)
	if err != nil {
		return nil, err
	}
	return BuildChunkRecords(doc, chunks), nil
}

// ChunkBatch 切分一批文档。调用方给出的 ID 在批内重复时返回 ErrDuplicateDocumentID，
// 此时不会分配任何 ID。
func (b *Builder) ChunkBatch(docs []*model.Document) ([]*model.ChunkRecord, error) {
	if err := CheckDuplicateIDs(docs); err != nil {
		return nil, err
	}

	var records []*model.ChunkRecord
	for _, doc := range docs {
		recs, err := b.ChunkDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("chunk document %s: %w", doc.ID, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}

// CheckDuplicateIDs 检查调用方给出的文档 ID 是否重复。空 ID 不参与检查。
func CheckDuplicateIDs(docs []*model.Document) error {
	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			continue
		}
		if _, ok := seen[doc.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateDocumentID, doc.ID)
		}
		seen[doc.ID] = struct{}{}
	}
	return nil
}
