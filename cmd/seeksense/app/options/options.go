// Package options contains flags and options for initializing the SeekSense server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	ragsvc "github.com/kart-io/seeksense/internal/rag"
	"github.com/kart-io/seeksense/pkg/app/cliflag"
	cacheopts "github.com/kart-io/seeksense/pkg/options/cache"
	catalogopts "github.com/kart-io/seeksense/pkg/options/catalog"
	llmopts "github.com/kart-io/seeksense/pkg/options/llm"
	logopts "github.com/kart-io/seeksense/pkg/options/logger"
	milvusopts "github.com/kart-io/seeksense/pkg/options/milvus"
	ragopts "github.com/kart-io/seeksense/pkg/options/rag"
	httpopts "github.com/kart-io/seeksense/pkg/options/server/http"
	tracingopts "github.com/kart-io/seeksense/pkg/options/tracing"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// RAGOptions contains chunking, indexing and retrieval configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// CacheOptions contains cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// CatalogOptions contains document catalog configuration.
	CatalogOptions *catalogopts.Options `json:"catalog" mapstructure:"catalog"`

	// TracingOptions contains OpenTelemetry tracing configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		RAGOptions:       ragopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		CatalogOptions:   catalogopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.CatalogOptions.AddFlags(fss.FlagSet("catalog"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.MilvusOptions.Complete(); err != nil {
		return fmt.Errorf("milvus: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.CatalogOptions.Complete(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	if o.RAGOptions.Store == ragopts.StoreMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.CatalogOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)

	if d := o.EmbeddingOptions.Dimensions; d > 0 && d != o.RAGOptions.EmbeddingDim {
		errs = append(errs, fmt.Errorf("embedding.dimensions (%d) must match rag.embedding-dim (%d)", d, o.RAGOptions.EmbeddingDim))
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a ragsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*ragsvc.Config, error) {
	return &ragsvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		MilvusOptions:    o.MilvusOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		RAGOptions:       o.RAGOptions,
		CacheOptions:     o.CacheOptions,
		CatalogOptions:   o.CatalogOptions,
		TracingOptions:   o.TracingOptions,
	}, nil
}
