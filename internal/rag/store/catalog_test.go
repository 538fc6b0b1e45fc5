package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/pkg/component/mongodb"
	mongodbopts "github.com/kart-io/seeksense/pkg/options/mongodb"
)

func TestMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()

	require.NoError(t, c.Upsert(ctx, []*model.CatalogEntry{
		{ID: "a", Title: "ফোন", TotalChunks: 3, Status: model.DocumentIndexed},
	}))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalChunks)

	require.NoError(t, c.Upsert(ctx, []*model.CatalogEntry{{ID: "a", Status: model.DocumentFailed}}))
	got, _ = c.Get(ctx, "a")
	assert.Equal(t, model.DocumentFailed, got.Status)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestMongoCatalog(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	opts := mongodbopts.NewOptions()
	opts.ServerSelectionTimeout = time.Second
	opts.ConnectTimeout = time.Second
	opts.Database = "seeksense_test"
	client, err := mongodb.New(ctx, opts)
	if err != nil {
		t.Skipf("MongoDB 不可用: %v", err)
	}

	coll := fmt.Sprintf("catalog_%d", time.Now().UnixNano())
	c := NewMongoCatalog(client, coll)
	defer func() {
		_ = client.Collection(coll).Drop(context.Background())
		_ = c.Close(context.Background())
	}()

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, c.Upsert(ctx, []*model.CatalogEntry{
		{ID: "doc1", Title: "জুতা", Kind: model.PayloadFreeText, TotalChunks: 2, Inserted: 2, Status: model.DocumentIndexed, UpdatedAt: now},
	}))

	got, err := c.Get(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "জুতা", got.Title)
	assert.Equal(t, 2, got.TotalChunks)
	assert.True(t, now.Equal(got.UpdatedAt))

	_, err = c.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
