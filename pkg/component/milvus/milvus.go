// Package milvus wraps the Milvus v2 SDK client for collections keyed by a
// VarChar primary key.
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/seeksense/pkg/options/milvus"
)

const (
	// PrimaryField is the name of the VarChar primary key.
	PrimaryField = "id"
	// VectorField is the name of the float vector field.
	VectorField = "embedding"
	// PrimaryKeyMaxLen bounds the primary key length.
	PrimaryKeyMaxLen = 128
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// CollectionSchema defines the schema for a vector collection.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	MetaFields  []MetaField
}

// MetaField defines a scalar field in the collection.
type MetaField struct {
	Name     string
	DataType entity.FieldType
	MaxLen   int // For VARCHAR type
}

// CreateCollection creates the collection with a VarChar primary key, an
// IVF_FLAT cosine index and loads it. An existing collection is left untouched.
func (c *Client) CreateCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return c.load(ctx, schema.Name)
	}

	collSchema := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description).
		WithAutoID(false).
		WithField(entity.NewField().
			WithName(PrimaryField).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(PrimaryKeyMaxLen).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(VectorField).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)))

	for _, f := range schema.MetaFields {
		field := entity.NewField().WithName(f.Name).WithDataType(f.DataType)
		if f.DataType == entity.FieldTypeVarChar && f.MaxLen > 0 {
			field.WithMaxLength(int64(f.MaxLen))
		}
		collSchema.WithField(field)
	}

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, c.opts.NList)
	task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, VectorField, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	return c.load(ctx, schema.Name)
}

func (c *Client) load(ctx context.Context, collection string) error {
	task, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// InsertData represents rows to be inserted into a collection.
type InsertData struct {
	IDs        []string
	Embeddings [][]float32
	Metadata   map[string][]any
}

// Insert inserts rows and returns the number persisted.
func (c *Client) Insert(ctx context.Context, collectionName string, data *InsertData) (int64, error) {
	if len(data.IDs) == 0 {
		return 0, nil
	}
	if len(data.IDs) != len(data.Embeddings) {
		return 0, fmt.Errorf("ids (%d) and embeddings (%d) length mismatch", len(data.IDs), len(data.Embeddings))
	}

	columns := make([]column.Column, 0, len(data.Metadata)+2)
	columns = append(columns,
		column.NewColumnVarChar(PrimaryField, data.IDs),
		column.NewColumnFloatVector(VectorField, len(data.Embeddings[0]), data.Embeddings),
	)

	for name, values := range data.Metadata {
		col, err := buildColumn(name, values)
		if err != nil {
			return 0, err
		}
		columns = append(columns, col)
	}

	result, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName, columns...))
	if err != nil {
		return 0, fmt.Errorf("failed to insert data: %w", err)
	}

	if c.opts.FlushOnInsert {
		task, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collectionName))
		if err != nil {
			return 0, fmt.Errorf("failed to flush collection: %w", err)
		}
		if err := task.Await(ctx); err != nil {
			return 0, fmt.Errorf("failed to wait for flush: %w", err)
		}
	}

	return result.InsertCount, nil
}

func buildColumn(name string, values []any) (column.Column, error) {
	switch values[0].(type) {
	case string:
		out := make([]string, len(values))
		for i, v := range values {
			out[i], _ = v.(string)
		}
		return column.NewColumnVarChar(name, out), nil
	case int64:
		out := make([]int64, len(values))
		for i, v := range values {
			out[i], _ = v.(int64)
		}
		return column.NewColumnInt64(name, out), nil
	default:
		return nil, fmt.Errorf("unsupported metadata type: %T for field %s", values[0], name)
	}
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Search performs a vector similarity search ordered by descending score.
func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, topK int, outputFields []string) ([]SearchResult, error) {
	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		collectionName,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(VectorField).
		WithSearchParam("nprobe", strconv.Itoa(c.opts.NProbe)).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	rs := results[0]
	out := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		r := SearchResult{
			Score:    rs.Scores[i],
			Metadata: rowValues(rs.Fields, i),
		}
		if rs.IDs != nil {
			if id, err := rs.IDs.GetAsString(i); err == nil {
				r.ID = id
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// Query returns the rows matching a boolean filter expression.
func (c *Client) Query(ctx context.Context, collectionName, expr string, outputFields []string) ([]map[string]any, error) {
	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(collectionName).
		WithFilter(expr).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	n := 0
	for _, col := range rs.Fields {
		n = max(n, col.Len())
	}
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = rowValues(rs.Fields, i)
	}
	return rows, nil
}

func rowValues(fields []column.Column, i int) map[string]any {
	row := make(map[string]any, len(fields))
	for _, col := range fields {
		if i >= col.Len() {
			continue
		}
		switch typed := col.(type) {
		case *column.ColumnVarChar:
			row[col.Name()] = typed.Data()[i]
		case *column.ColumnInt64:
			row[col.Name()] = typed.Data()[i]
		default:
			if v, err := col.Get(i); err == nil {
				row[col.Name()] = v
			}
		}
	}
	return row
}

// InExpr builds `field in ["a","b"]` with quoted string values.
func InExpr(field string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return fmt.Sprintf("%s in [%s]", field, strings.Join(quoted, ","))
}

// EqExpr builds `field == "value"`.
func EqExpr(field, value string) string {
	return fmt.Sprintf("%s == %s", field, strconv.Quote(value))
}

// GetCollectionStats returns the number of entities in a collection.
func (c *Client) GetCollectionStats(ctx context.Context, collectionName string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
