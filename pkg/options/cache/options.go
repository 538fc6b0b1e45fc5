// Package cache provides cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/seeksense/pkg/options"
	redisopts "github.com/kart-io/seeksense/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// Options 查询缓存配置。
type Options struct {
	// Enabled 是否启用查询结果缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// EmbeddingCache 是否缓存文本向量。
	EmbeddingCache bool `json:"embedding-cache" mapstructure:"embedding-cache"`

	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 查询缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认缓存配置。缓存默认关闭，开发模式不依赖 Redis。
func NewOptions() *Options {
	return &Options{
		Enabled:        false,
		EmbeddingCache: false,
		TTL:            time.Hour,
		KeyPrefix:      "seeksense:query:",
		Redis:          redisopts.NewOptions(),
	}
}

// NeedsRedis 报告是否有任何缓存需要 Redis。
func (o *Options) NeedsRedis() bool {
	return o.Enabled || o.EmbeddingCache
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	base := options.Join(prefixes...) + "cache"
	p := base + "."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable the query result cache.")
	fs.BoolVar(&o.EmbeddingCache, p+"embedding-cache", o.EmbeddingCache, "Cache text embeddings in Redis.")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "Cache TTL duration.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Query cache key prefix.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, base)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.NeedsRedis() {
		if o.TTL <= 0 {
			errs = append(errs, fmt.Errorf("cache.ttl must be positive"))
		}
		if o.Redis == nil {
			errs = append(errs, fmt.Errorf("cache.redis is required when caching is enabled"))
		} else {
			errs = append(errs, o.Redis.Validate()...)
		}
	}
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
