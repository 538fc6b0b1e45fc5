package store

import (
	"fmt"
	"unicode/utf8"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/internal/pkg/rag/textutil"
	"github.com/kart-io/seeksense/pkg/component/milvus"
)

// 集合模式名称。
const (
	SchemaFreeText = "free-text"
	SchemaLegacy   = "legacy"
	SchemaPaired   = "paired"
)

// 字段名。
const (
	FieldTitle            = "title"
	FieldContent          = "content"
	FieldCategory         = "category"
	FieldDescription      = "description"
	FieldChunkIndex       = "chunk_index"
	FieldTotalChunks      = "total_chunks"
	FieldLeftTitle        = "left_title"
	FieldLeftCategory     = "left_category"
	FieldLeftDescription  = "left_description"
	FieldRightTitle       = "right_title"
	FieldRightCategory    = "right_category"
	FieldRightDescription = "right_description"
)

// varCharMaxBytes 是 Milvus VarChar 字段的最大字节数。
const varCharMaxBytes = 65535

// FieldLimits 文本字段的最大字符数，0 表示不截断。
type FieldLimits struct {
	Title       int
	Content     int
	Category    int
	Description int
}

// Schema 描述一种集合布局及其字段截断规则。
type Schema struct {
	Name   string
	Limits FieldLimits
	fields []string
}

// NewSchema 返回指定模式的布局。overrides 中的非零值覆盖模式默认的截断长度。
func NewSchema(name string, overrides FieldLimits) (*Schema, error) {
	var s *Schema
	switch name {
	case SchemaFreeText:
		s = &Schema{
			Name:   name,
			Limits: FieldLimits{Title: 1000, Content: 100000, Category: 1000, Description: 10000},
			fields: []string{FieldTitle, FieldContent, FieldCategory, FieldDescription},
		}
	case SchemaLegacy:
		s = &Schema{
			Name:   name,
			Limits: FieldLimits{Title: 1000, Content: 10000},
			fields: []string{FieldTitle, FieldContent},
		}
	case SchemaPaired:
		s = &Schema{
			Name:   name,
			Limits: FieldLimits{Title: 1000, Category: 1000, Description: 10000},
			fields: []string{
				FieldLeftTitle, FieldLeftCategory, FieldLeftDescription,
				FieldRightTitle, FieldRightCategory, FieldRightDescription,
			},
		}
	default:
		return nil, fmt.Errorf("unknown collection schema %q", name)
	}

	if overrides.Title > 0 {
		s.Limits.Title = overrides.Title
	}
	if overrides.Content > 0 {
		s.Limits.Content = overrides.Content
	}
	if overrides.Category > 0 {
		s.Limits.Category = overrides.Category
	}
	if overrides.Description > 0 {
		s.Limits.Description = overrides.Description
	}
	return s, nil
}

// OutputFields 返回检索和查找时需要取回的字段。
func (s *Schema) OutputFields() []string {
	out := make([]string, 0, len(s.fields)+3)
	out = append(out, milvus.PrimaryField)
	out = append(out, s.fields...)
	return append(out, FieldChunkIndex, FieldTotalChunks)
}

// MetaFields 返回 Milvus 集合的标量字段定义。
func (s *Schema) MetaFields() []milvus.MetaField {
	out := make([]milvus.MetaField, 0, len(s.fields)+2)
	for _, f := range s.fields {
		out = append(out, milvus.MetaField{Name: f, DataType: entity.FieldTypeVarChar, MaxLen: varCharMaxBytes})
	}
	return append(out,
		milvus.MetaField{Name: FieldChunkIndex, DataType: entity.FieldTypeInt64},
		milvus.MetaField{Name: FieldTotalChunks, DataType: entity.FieldTypeInt64},
	)
}

// Truncate 返回按字段限制截断后的副本，原记录不变。
func (s *Schema) Truncate(rec *model.ChunkRecord) *model.ChunkRecord {
	out := *rec
	out.Title = clip(rec.Title, s.Limits.Title)
	out.Content = clip(rec.Content, s.Limits.Content)
	out.Category = clip(rec.Category, s.Limits.Category)
	out.Description = clip(rec.Description, s.Limits.Description)
	if !rec.Paired.IsZero() {
		p := *rec.Paired
		p.LeftTitle = clip(p.LeftTitle, s.Limits.Title)
		p.RightTitle = clip(p.RightTitle, s.Limits.Title)
		p.LeftCategory = clip(p.LeftCategory, s.Limits.Category)
		p.RightCategory = clip(p.RightCategory, s.Limits.Category)
		p.LeftDescription = clip(p.LeftDescription, s.Limits.Description)
		p.RightDescription = clip(p.RightDescription, s.Limits.Description)
		out.Paired = &p
	}
	return &out
}

// Row 返回记录在本模式下的字段值。
func (s *Schema) Row(rec *model.ChunkRecord) map[string]any {
	row := map[string]any{
		FieldChunkIndex:  int64(rec.ChunkIndex),
		FieldTotalChunks: int64(rec.TotalChunks),
	}
	p := rec.Paired
	if p == nil {
		p = &model.PairedFields{}
	}
	for _, f := range s.fields {
		var v string
		switch f {
		case FieldTitle:
			v = rec.Title
		case FieldContent:
			v = rec.Content
		case FieldCategory:
			v = rec.Category
		case FieldDescription:
			v = rec.Description
		case FieldLeftTitle:
			v = p.LeftTitle
		case FieldLeftCategory:
			v = p.LeftCategory
		case FieldLeftDescription:
			v = p.LeftDescription
		case FieldRightTitle:
			v = p.RightTitle
		case FieldRightCategory:
			v = p.RightCategory
		case FieldRightDescription:
			v = p.RightDescription
		}
		row[f] = fitBytes(v, varCharMaxBytes)
	}
	return row
}

// Record 把一行字段值还原为分块记录。缺失的字段保持零值。
func (s *Schema) Record(id string, row map[string]any) *model.ChunkRecord {
	rec := &model.ChunkRecord{ID: id}
	if v, ok := row[milvus.PrimaryField].(string); ok && id == "" {
		rec.ID = v
	}
	rec.DocumentID, _, _ = model.ParseChunkID(rec.ID)
	rec.ChunkIndex = intValue(row[FieldChunkIndex])
	rec.TotalChunks = intValue(row[FieldTotalChunks])

	str := func(name string) string {
		v, _ := row[name].(string)
		return v
	}
	rec.Title = str(FieldTitle)
	rec.Content = str(FieldContent)
	rec.Category = str(FieldCategory)
	rec.Description = str(FieldDescription)

	if s.Name == SchemaPaired {
		paired := &model.PairedFields{
			LeftTitle:        str(FieldLeftTitle),
			LeftCategory:     str(FieldLeftCategory),
			LeftDescription:  str(FieldLeftDescription),
			RightTitle:       str(FieldRightTitle),
			RightCategory:    str(FieldRightCategory),
			RightDescription: str(FieldRightDescription),
		}
		if !paired.IsZero() {
			rec.Paired = paired
			if rec.Title == "" {
				rec.Title = paired.LeftTitle
			}
		}
	}
	return rec
}

func intValue(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func clip(s string, limit int) string {
	return textutil.TruncateString(s, limit)
}

// fitBytes 在字符边界处把字符串截断到 n 字节以内。
func fitBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
