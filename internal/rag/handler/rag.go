// Package handler provides HTTP handlers for the search service.
package handler

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/internal/rag/biz"
	"github.com/kart-io/seeksense/internal/rag/metrics"
	"github.com/kart-io/seeksense/pkg/response"
)

// queryTimeout 问答请求的超时时间。
const queryTimeout = 60 * time.Second

// RAGHandler handles search HTTP requests.
type RAGHandler struct {
	service biz.Service
	metrics *metrics.RAGMetrics
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(service biz.Service, m *metrics.RAGMetrics) *RAGHandler {
	if m == nil {
		m = metrics.GetRAGMetrics()
	}
	return &RAGHandler{
		service: service,
		metrics: m,
	}
}

// PairedRequest 成对文档字段。
type PairedRequest struct {
	LeftTitle        string `json:"left_title" binding:"required"`
	LeftCategory     string `json:"left_category"`
	LeftDescription  string `json:"left_description"`
	RightTitle       string `json:"right_title" binding:"required"`
	RightCategory    string `json:"right_category"`
	RightDescription string `json:"right_description"`
}

// DocumentRequest 待索引的单个文档。
type DocumentRequest struct {
	ID          string         `json:"id" binding:"max=100"`
	Title       string         `json:"title" binding:"max=500"`
	Body        string         `json:"body"`
	Category    string         `json:"category" binding:"max=100"`
	Description string         `json:"description"`
	Paired      *PairedRequest `json:"paired"`
}

func (r *DocumentRequest) toModel() *model.Document {
	doc := &model.Document{
		ID:          r.ID,
		Title:       r.Title,
		Body:        r.Body,
		Category:    r.Category,
		Description: r.Description,
	}
	if r.Paired != nil {
		doc.Paired = &model.PairedFields{
			LeftTitle:        r.Paired.LeftTitle,
			LeftCategory:     r.Paired.LeftCategory,
			LeftDescription:  r.Paired.LeftDescription,
			RightTitle:       r.Paired.RightTitle,
			RightCategory:    r.Paired.RightCategory,
			RightDescription: r.Paired.RightDescription,
		}
	}
	return doc
}

// IndexRequest represents an index request.
// 空列表交给服务层处理，返回 ErrSearchNoDocuments。
type IndexRequest struct {
	Documents []*DocumentRequest `json:"documents" binding:"dive,required"`
}

// Index indexes a batch of documents.
func (h *RAGHandler) Index(c *gin.Context) {
	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWithBind(c, err)
		return
	}

	docs := make([]*model.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = d.toModel()
	}

	report, err := h.service.Index(c.Request.Context(), docs)
	if err != nil {
		fail(c, opIndex, err)
		return
	}
	response.OK(c, report)
}

// SearchRequest represents a search request.
type SearchRequest struct {
	Query      string `json:"query" binding:"required"`
	Limit      int    `json:"limit" binding:"omitempty,min=1,max=100"`
	Reassemble *bool  `json:"reassemble"`
}

// Search returns raw chunk hits or reassembled documents.
func (h *RAGHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWithBind(c, err)
		return
	}

	result, err := h.service.Search(c.Request.Context(), &biz.SearchRequest{
		Query:      req.Query,
		Limit:      req.Limit,
		Reassemble: req.Reassemble,
	})
	if err != nil {
		fail(c, opSearch, err)
		return
	}
	response.OK(c, result)
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k" binding:"omitempty,min=1,max=100"`
}

// Query performs a guarded retrieval and answer generation.
func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWithBind(c, err)
		return
	}

	// 添加 60 秒超时控制
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result, err := h.service.Query(ctx, req.Query, req.TopK)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = context.DeadlineExceeded
		}
		fail(c, opQuery, err)
		return
	}
	response.OK(c, result)
}

// Stats returns index and service statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		fail(c, opStats, err)
		return
	}
	response.OK(c, stats)
}

// GetDocument returns the catalog entry of a document.
func (h *RAGHandler) GetDocument(c *gin.Context) {
	entry, err := h.service.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, opDocument, err)
		return
	}
	response.OK(c, entry)
}

// ClearCache drops every cached query result.
func (h *RAGHandler) ClearCache(c *gin.Context) {
	deleted, err := h.service.ClearCache(c.Request.Context())
	if err != nil {
		fail(c, opCache, err)
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}

// Health reports liveness.
func (h *RAGHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics exports counters in the Prometheus text format.
func (h *RAGHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(h.metrics.Export("seeksense", "rag")))
}
