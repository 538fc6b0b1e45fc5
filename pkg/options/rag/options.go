// Package rag provides chunking, indexing and retrieval options.
package rag

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/seeksense/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 向量存储后端。
const (
	StoreMilvus = "milvus"
	StoreMemory = "memory"
)

// 集合模式。
const (
	SchemaFreeText = "free-text"
	SchemaLegacy   = "legacy"
	SchemaPaired   = "paired"
)

// Options contains chunking, indexing and retrieval configuration.
type Options struct {
	// Store 向量存储后端（milvus | memory）。
	Store string `json:"store" mapstructure:"store"`

	// Collection Milvus 集合名称。
	Collection string `json:"collection" mapstructure:"collection"`

	// Schema 集合模式（free-text | legacy | paired）。
	Schema string `json:"schema" mapstructure:"schema"`

	// EmbeddingDim 向量维度，必须与集合一致。
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// ChunkSize 每个分块的最大字符数。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap 相邻分块的重叠字符数。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TitleMaxLen 标题字段截断长度，0 表示使用模式默认值。
	TitleMaxLen int `json:"title-max-len" mapstructure:"title-max-len"`

	// ContentMaxLen 正文字段截断长度，0 表示使用模式默认值。
	ContentMaxLen int `json:"content-max-len" mapstructure:"content-max-len"`

	// TopK 默认返回的文档数量。
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Reassemble 检索时是否默认重组文档。
	Reassemble bool `json:"reassemble" mapstructure:"reassemble"`

	// ReassemblyConcurrency 补齐缺失分块时的并发上限。
	ReassemblyConcurrency int `json:"reassembly-concurrency" mapstructure:"reassembly-concurrency"`

	// LookupTimeout 单次分块查找超时。
	LookupTimeout time.Duration `json:"lookup-timeout" mapstructure:"lookup-timeout"`

	// BatchSize 每个索引批次的文档数。
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`

	// EmbedBatchSize 每次向量化请求的文本数。
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// EmbedTimeout 每次向量化请求的超时。
	EmbedTimeout time.Duration `json:"embed-timeout" mapstructure:"embed-timeout"`

	// Workers 并发索引批次数。
	Workers int `json:"workers" mapstructure:"workers"`

	// Guard 是否启用查询安全与相关性检查。
	Guard bool `json:"guard" mapstructure:"guard"`

	// SystemPrompt 生成回答时的系统提示，可为空。
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// IDKind 未指定 ID 的文档使用的 ID 类型（ulid, uuid）。
	IDKind string `json:"id-kind" mapstructure:"id-kind"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Store:                 StoreMilvus,
		Collection:            "seeksense_chunks",
		Schema:                SchemaFreeText,
		EmbeddingDim:          1024,
		ChunkSize:             512,
		ChunkOverlap:          50,
		TopK:                  5,
		Reassemble:            true,
		ReassemblyConcurrency: 8,
		LookupTimeout:         5 * time.Second,
		BatchSize:             100,
		EmbedBatchSize:        16,
		EmbedTimeout:          30 * time.Second,
		Workers:               4,
		Guard:                 true,
		IDKind:                "ulid",
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.StringVar(&o.Store, p+"store", o.Store, "Vector store backend (milvus, memory).")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Milvus collection name.")
	fs.StringVar(&o.Schema, p+"schema", o.Schema, "Collection schema (free-text, legacy, paired).")
	fs.IntVar(&o.EmbeddingDim, p+"embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum characters per chunk.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Characters shared by consecutive chunks.")
	fs.IntVar(&o.TitleMaxLen, p+"title-max-len", o.TitleMaxLen, "Stored title length limit, 0 for the schema default.")
	fs.IntVar(&o.ContentMaxLen, p+"content-max-len", o.ContentMaxLen, "Stored content length limit, 0 for the schema default.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Default number of documents returned.")
	fs.BoolVar(&o.Reassemble, p+"reassemble", o.Reassemble, "Reassemble chunks into documents by default.")
	fs.IntVar(&o.ReassemblyConcurrency, p+"reassembly-concurrency", o.ReassemblyConcurrency, "Concurrent chunk lookups while reassembling.")
	fs.DurationVar(&o.LookupTimeout, p+"lookup-timeout", o.LookupTimeout, "Timeout of one chunk lookup.")
	fs.IntVar(&o.BatchSize, p+"batch-size", o.BatchSize, "Documents per indexing batch.")
	fs.IntVar(&o.EmbedBatchSize, p+"embed-batch-size", o.EmbedBatchSize, "Texts per embedding request.")
	fs.DurationVar(&o.EmbedTimeout, p+"embed-timeout", o.EmbedTimeout, "Timeout of one embedding request.")
	fs.IntVar(&o.Workers, p+"workers", o.Workers, "Concurrent indexing batches.")
	fs.BoolVar(&o.Guard, p+"guard", o.Guard, "Reject jailbreak attempts and off-topic queries.")
	fs.StringVar(&o.SystemPrompt, p+"system-prompt", o.SystemPrompt, "System prompt for answer generation.")
	fs.StringVar(&o.IDKind, p+"id-kind", o.IDKind, "Generated document id type (ulid, uuid).")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Store != StoreMilvus && o.Store != StoreMemory {
		errs = append(errs, fmt.Errorf("rag.store must be %q or %q", StoreMilvus, StoreMemory))
	}
	switch o.Schema {
	case SchemaFreeText, SchemaLegacy, SchemaPaired:
	default:
		errs = append(errs, fmt.Errorf("rag.schema %q is not supported", o.Schema))
	}
	if o.Store == StoreMilvus && o.Collection == "" {
		errs = append(errs, fmt.Errorf("rag.collection is required"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("rag.embedding-dim must be positive"))
	}
	if o.ChunkSize <= 0 || o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-size (%d) must be positive and greater than rag.chunk-overlap (%d) >= 0", o.ChunkSize, o.ChunkOverlap))
	}
	if o.TitleMaxLen < 0 || o.ContentMaxLen < 0 {
		errs = append(errs, fmt.Errorf("rag field length limits cannot be negative"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.ReassemblyConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("rag.reassembly-concurrency must be positive"))
	}
	if o.LookupTimeout <= 0 || o.EmbedTimeout <= 0 {
		errs = append(errs, fmt.Errorf("rag timeouts must be positive"))
	}
	if o.IDKind != "" && o.IDKind != "ulid" && o.IDKind != "uuid" {
		errs = append(errs, fmt.Errorf("rag.id-kind must be ulid or uuid"))
	}
	if o.BatchSize <= 0 || o.EmbedBatchSize <= 0 || o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("rag.batch-size, rag.embed-batch-size and rag.workers must be positive"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.Schema == "" {
		o.Schema = SchemaFreeText
	}
	if o.Store == "" {
		o.Store = StoreMilvus
	}
	return nil
}
