// Package store 提供分块记录的向量存储与文档目录。
//
// VectorStore 有两个实现：基于 Milvus 的 MilvusStore 用于生产环境，
// MemoryStore 用于开发模式和测试。集合的字段由 Schema 决定，
// 文本字段在写入前按 FieldLimits 截断。Catalog 是可选的 MongoDB 文档目录。
package store
