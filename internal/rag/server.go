// Package ragsvc wires the search service: providers, stores, caches and the HTTP server.
package ragsvc

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/seeksense/internal/rag/biz"
	"github.com/kart-io/seeksense/internal/rag/handler"
	"github.com/kart-io/seeksense/internal/rag/metrics"
	"github.com/kart-io/seeksense/internal/rag/router"
	"github.com/kart-io/seeksense/internal/rag/store"
	"github.com/kart-io/seeksense/pkg/component/milvus"
	"github.com/kart-io/seeksense/pkg/component/mongodb"
	"github.com/kart-io/seeksense/pkg/component/redis"
	"github.com/kart-io/seeksense/pkg/id"
	"github.com/kart-io/seeksense/pkg/infra/app"
	"github.com/kart-io/seeksense/pkg/infra/middleware"
	"github.com/kart-io/seeksense/pkg/infra/pool"
	"github.com/kart-io/seeksense/pkg/infra/tracing"
	"github.com/kart-io/seeksense/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/seeksense/pkg/llm/jina"
	_ "github.com/kart-io/seeksense/pkg/llm/ollama"
	_ "github.com/kart-io/seeksense/pkg/llm/openai"
	"github.com/kart-io/seeksense/pkg/llm/resilience"
	cacheopts "github.com/kart-io/seeksense/pkg/options/cache"
	catalogopts "github.com/kart-io/seeksense/pkg/options/catalog"
	llmopts "github.com/kart-io/seeksense/pkg/options/llm"
	logopts "github.com/kart-io/seeksense/pkg/options/logger"
	milvusopts "github.com/kart-io/seeksense/pkg/options/milvus"
	ragopts "github.com/kart-io/seeksense/pkg/options/rag"
	httpopts "github.com/kart-io/seeksense/pkg/options/server/http"
	tracingopts "github.com/kart-io/seeksense/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "seeksense"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options
	CatalogOptions   *catalogopts.Options
	TracingOptions   *tracingopts.Options
}

// Components 是服务运行所需的全部依赖。index 子命令与 HTTP 服务共用。
type Components struct {
	Service *biz.RAGService
	Metrics *metrics.RAGMetrics

	closers []func(context.Context)
}

// Close 按创建的逆序释放资源。
func (c *Components) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i](ctx)
	}
	c.closers = nil
}

func (c *Components) onClose(fn func(context.Context)) {
	c.closers = append(c.closers, fn)
}

// poolDrainTimeout 关闭时等待索引批次结束的默认时长。
const poolDrainTimeout = 30 * time.Second

// drainTimeout 取 ctx 剩余时间，没有截止时间时使用 poolDrainTimeout。
func drainTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
		return time.Millisecond
	}
	return poolDrainTimeout
}

// InitLogger 初始化全局日志。
func (cfg *Config) InitLogger() error {
	if err := cfg.LogOptions.Init(Name, app.GetVersion()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// NewComponents 创建服务依赖。失败时已创建的资源会被释放。
func (cfg *Config) NewComponents(ctx context.Context) (_ *Components, err error) {
	c := &Components{Metrics: metrics.GetRAGMetrics()}
	defer func() {
		if err != nil {
			c.Close(context.Background())
		}
	}()

	// 1. Redis（查询缓存与向量缓存共用）
	var redisClient goredis.UniversalClient
	if cfg.CacheOptions.NeedsRedis() {
		rc, err := redis.New(ctx, cfg.CacheOptions.Redis)
		if err != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		} else {
			redisClient = rc.Client()
			c.onClose(func(context.Context) { _ = rc.Close() })
			logger.Infow("Redis cache initialized",
				"addr", cfg.CacheOptions.Redis.Addr(),
				"ttl", cfg.CacheOptions.TTL,
			)
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 2. LLM 供应商
	embedder, chat, err := cfg.newProviders(redisClient)
	if err != nil {
		return nil, err
	}

	// 3. 向量存储
	schema, err := store.NewSchema(cfg.RAGOptions.Schema, store.FieldLimits{
		Title:   cfg.RAGOptions.TitleMaxLen,
		Content: cfg.RAGOptions.ContentMaxLen,
	})
	if err != nil {
		return nil, err
	}
	vectorStore, err := cfg.newVectorStore(ctx, c, schema)
	if err != nil {
		return nil, err
	}

	// 4. 文档目录
	var catalog store.Catalog
	if cfg.CatalogOptions.Enabled {
		mc, err := mongodb.New(ctx, cfg.CatalogOptions.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize document catalog: %w", err)
		}
		catalog = store.NewMongoCatalog(mc, cfg.CatalogOptions.Collection)
		c.onClose(func(ctx context.Context) { _ = mc.Close(ctx) })
		logger.Infow("Document catalog initialized", "collection", cfg.CatalogOptions.Collection)
	}

	// 5. 索引协程池
	workers, err := pool.NewPool("rag-index", pool.IndexPoolConfig(cfg.RAGOptions.Workers))
	if err != nil {
		return nil, fmt.Errorf("failed to create index pool: %w", err)
	}
	c.onClose(func(ctx context.Context) {
		if err := workers.ReleaseTimeout(drainTimeout(ctx)); err != nil {
			logger.Warnw("index pool did not drain before shutdown", "error", err.Error())
		}
	})

	// 6. Biz 层
	var queryCache *biz.QueryCache
	if cfg.CacheOptions.Enabled && redisClient != nil {
		queryCache = biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.TTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix,
		})
	}

	r := cfg.RAGOptions
	service, err := biz.NewRAGService(vectorStore, embedder, chat, queryCache, catalog, workers, &biz.ServiceConfig{
		Collection: r.Collection,
		IndexerConfig: &biz.IndexerConfig{
			ChunkSize:      r.ChunkSize,
			ChunkOverlap:   r.ChunkOverlap,
			BatchSize:      r.BatchSize,
			EmbedBatchSize: r.EmbedBatchSize,
			EmbedTimeout:   r.EmbedTimeout,
		},
		RetrieverConfig: &biz.RetrieverConfig{
			TopK:       r.TopK,
			Reassemble: r.Reassemble,
		},
		ReassemblerConfig: biz.ReassemblerConfig{
			Concurrency:   r.ReassemblyConcurrency,
			LookupTimeout: r.LookupTimeout,
		},
		GeneratorConfig: &biz.GeneratorConfig{SystemPrompt: r.SystemPrompt},
		GuardEnabled:    r.Guard,
	}, c.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search service: %w", err)
	}
	service.Indexer().WithIDGenerator(id.NewGenerator(r.IDKind))
	c.Service = service

	logger.Infow("Search service initialized",
		"store", r.Store,
		"schema", r.Schema,
		"chunk_size", r.ChunkSize,
		"chunk_overlap", r.ChunkOverlap,
		"query_cache", queryCache != nil,
		"catalog", catalog != nil,
		"guard", r.Guard,
	)
	return c, nil
}

func (cfg *Config) newProviders(redisClient goredis.UniversalClient) (llm.EmbeddingProvider, llm.ChatProvider, error) {
	embedder, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	chat, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}

	if cfg.EmbeddingOptions.Resilience {
		embedder = resilience.NewEmbeddingProvider(embedder, resilience.DefaultRetryConfig(), breakerConfig(cfg.EmbeddingOptions))
	}
	if cfg.ChatOptions.Resilience {
		chat = resilience.NewChatProvider(chat, resilience.DefaultRetryConfig(), breakerConfig(cfg.ChatOptions))
	}
	if cfg.CacheOptions.EmbeddingCache && redisClient != nil {
		embedder = llm.NewCachedEmbeddingProvider(embedder, redisClient, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       24 * time.Hour,
			KeyPrefix: "seeksense:emb:" + cfg.EmbeddingOptions.Model + ":",
		})
	}

	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
		"resilience", cfg.EmbeddingOptions.Resilience,
	)
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
		"resilience", cfg.ChatOptions.Resilience,
	)
	return embedder, chat, nil
}

func breakerConfig(o *llmopts.ProviderOptions) *resilience.CircuitBreakerConfig {
	bc := resilience.DefaultCircuitBreakerConfig()
	if o.BreakerFailures > 0 {
		bc.MaxFailures = o.BreakerFailures
	}
	if o.BreakerTimeout > 0 {
		bc.Timeout = o.BreakerTimeout
	}
	return bc
}

func (cfg *Config) newVectorStore(ctx context.Context, c *Components, schema *store.Schema) (store.VectorStore, error) {
	if cfg.RAGOptions.Store == ragopts.StoreMemory {
		logger.Warn("Using in-memory vector store, data is lost on restart")
		return store.NewMemoryStore(cfg.RAGOptions.EmbeddingDim, schema), nil
	}

	client, err := milvus.New(ctx, cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	c.onClose(func(ctx context.Context) { _ = client.Close(ctx) })

	s, err := store.NewMilvusStore(client, store.MilvusConfig{
		Collection: cfg.RAGOptions.Collection,
		Dimension:  cfg.RAGOptions.EmbeddingDim,
		Schema:     schema,
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("Milvus vector store initialized",
		"address", cfg.MilvusOptions.Address,
		"collection", cfg.RAGOptions.Collection,
	)
	return s, nil
}

// Server represents the search HTTP server.
type Server struct {
	http            *http.Server
	components      *Components
	tracing         *tracing.Provider
	shutdownTimeout time.Duration
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	if err := cfg.InitLogger(); err != nil {
		return nil, err
	}
	logger.Info("Starting search service...")

	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions, Name, app.GetVersion())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	components, err := cfg.NewComponents(ctx)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return nil, err
	}

	gin.SetMode(cfg.HTTPOptions.Mode)
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Tracing(),
		middleware.Logger("/healthz", "/metrics"),
	)
	if limit := cfg.HTTPOptions.MaxBodyBytes; limit > 0 {
		engine.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
			c.Next()
		})
	}
	router.Register(engine, handler.NewRAGHandler(components.Service, components.Metrics))

	logger.Info("Search service is ready")
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPOptions.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
			WriteTimeout: cfg.HTTPOptions.WriteTimeout,
			IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
			BaseContext:  func(net.Listener) context.Context { return ctx },
		},
		components:      components,
		tracing:         tp,
		shutdownTimeout: cfg.HTTPOptions.ShutdownTimeout,
	}, nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.components.Close(closeCtx)
		if err := s.tracing.Shutdown(context.Background()); err != nil {
			logger.Warnw("failed to flush traces", "error", err.Error())
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infow("Shutting down HTTP server", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Store: %s (%s)\n", cfg.RAGOptions.Store, cfg.RAGOptions.Collection)
}
