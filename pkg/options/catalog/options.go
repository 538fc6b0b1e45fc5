// Package catalog provides options for the MongoDB document catalog.
package catalog

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/seeksense/pkg/options"
	mongodbopts "github.com/kart-io/seeksense/pkg/options/mongodb"
)

var _ options.IOptions = (*Options)(nil)

// Options 文档目录配置。目录记录每个已索引文档的分块数量与批次。
type Options struct {
	Enabled    bool                 `json:"enabled" mapstructure:"enabled"`
	Collection string               `json:"collection" mapstructure:"collection"`
	MongoDB    *mongodbopts.Options `json:"mongodb" mapstructure:"mongodb"`
}

// NewOptions 创建默认目录配置，默认关闭。
func NewOptions() *Options {
	return &Options{
		Collection: "documents",
		MongoDB:    mongodbopts.NewOptions(),
	}
}

// AddFlags adds flags for catalog options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	base := options.Join(prefixes...) + "catalog"
	p := base + "."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Record indexed documents in MongoDB.")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "MongoDB collection for the document catalog.")

	if o.MongoDB == nil {
		o.MongoDB = mongodbopts.NewOptions()
	}
	o.MongoDB.AddFlags(fs, base)
}

// Validate validates the catalog options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("catalog.collection cannot be empty"))
	}
	if o.MongoDB == nil {
		errs = append(errs, fmt.Errorf("catalog.mongodb is required when the catalog is enabled"))
	} else {
		errs = append(errs, o.MongoDB.Validate()...)
	}
	return errs
}

// Complete completes the catalog options with defaults.
func (o *Options) Complete() error {
	if o.MongoDB == nil {
		o.MongoDB = mongodbopts.NewOptions()
	}
	return o.MongoDB.Complete()
}
