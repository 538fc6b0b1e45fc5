package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/pkg/component/mongodb"
)

// MongoCatalog 将文档目录保存在 MongoDB 集合中，文档 ID 作为 _id。
type MongoCatalog struct {
	client *mongodb.Client
	coll   *mongo.Collection
}

// NewMongoCatalog 创建基于 MongoDB 的文档目录。
func NewMongoCatalog(client *mongodb.Client, collection string) *MongoCatalog {
	return &MongoCatalog{client: client, coll: client.Collection(collection)}
}

// Upsert 以 _id 为键批量写入目录条目。
func (c *MongoCatalog) Upsert(ctx context.Context, entries []*model.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": e.ID}).
			SetReplacement(e).
			SetUpsert(true))
	}

	if _, err := c.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("upsert catalog entries: %w", err)
	}
	return nil
}

// Get 读取单个文档的目录条目。
func (c *MongoCatalog) Get(ctx context.Context, documentID string) (*model.CatalogEntry, error) {
	var entry model.CatalogEntry
	err := c.coll.FindOne(ctx, bson.M{"_id": documentID}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog entry %s: %w", documentID, err)
	}
	return &entry, nil
}

// Close 断开 MongoDB 连接。
func (c *MongoCatalog) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// MemoryCatalog 是进程内的文档目录。
type MemoryCatalog struct {
	mu      sync.RWMutex
	entries map[string]model.CatalogEntry
}

// NewMemoryCatalog 创建内存文档目录。
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{entries: make(map[string]model.CatalogEntry)}
}

// Upsert 写入或覆盖目录条目。
func (c *MemoryCatalog) Upsert(_ context.Context, entries []*model.CatalogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.entries[e.ID] = *e
	}
	return nil
}

// Get 读取单个文档的目录条目。
func (c *MemoryCatalog) Get(_ context.Context, documentID string) (*model.CatalogEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	return &e, nil
}

// Close 无操作。
func (c *MemoryCatalog) Close(context.Context) error {
	return nil
}

var (
	_ Catalog = (*MongoCatalog)(nil)
	_ Catalog = (*MemoryCatalog)(nil)
)
