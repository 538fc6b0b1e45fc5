// Package router provides search service routing.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/seeksense/internal/rag/handler"
)

// Register registers the search service routes.
func Register(r gin.IRouter, h *handler.RAGHandler) {
	logger.Info("Registering search routes...")

	r.GET("/healthz", h.Health)
	r.GET("/metrics", h.Metrics)

	v1 := r.Group("/v1")
	{
		// Index endpoint
		v1.Handle(http.MethodPost, "/index", h.Index)

		// Retrieval endpoints
		v1.Handle(http.MethodPost, "/search", h.Search)
		v1.Handle(http.MethodPost, "/query", h.Query)

		// Catalog and stats endpoints
		v1.Handle(http.MethodGet, "/documents/:id", h.GetDocument)
		v1.Handle(http.MethodGet, "/stats", h.Stats)
		v1.Handle(http.MethodDelete, "/cache", h.ClearCache)
	}

	logger.Info("HTTP routes registered")
}
