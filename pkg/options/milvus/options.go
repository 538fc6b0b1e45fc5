// Package milvusopts provides options for Milvus client configuration.
package milvusopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/seeksense/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Milvus client configuration.
type Options struct {
	// Address is the Milvus server address (host:port).
	Address string `json:"address" mapstructure:"address"`

	// Database is the database name to use.
	Database string `json:"database" mapstructure:"database"`

	// Username for authentication.
	Username string `json:"username" mapstructure:"username"`

	// Password for authentication.
	Password string `json:"-" mapstructure:"password"`

	// Timeout for connection.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// NList is the IVF_FLAT cluster count used when the index is created.
	NList int `json:"nlist" mapstructure:"nlist"`

	// NProbe is the number of clusters visited per search.
	NProbe int `json:"nprobe" mapstructure:"nprobe"`

	// FlushOnInsert makes inserted rows visible to search before Insert returns.
	FlushOnInsert bool `json:"flush-on-insert" mapstructure:"flush-on-insert"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address:       "localhost:19530",
		Database:      "default",
		Timeout:       30 * time.Second,
		NList:         1024,
		NProbe:        10,
		FlushOnInsert: true,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus username for authentication.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password for authentication.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Connection timeout.")
	fs.IntVar(&o.NList, p+"nlist", o.NList, "IVF_FLAT nlist used when creating the vector index.")
	fs.IntVar(&o.NProbe, p+"nprobe", o.NProbe, "Number of clusters probed per search.")
	fs.BoolVar(&o.FlushOnInsert, p+"flush-on-insert", o.FlushOnInsert, "Flush the collection after each insert.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus address is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus timeout must be positive"))
	}
	if o.NList <= 0 || o.NProbe <= 0 {
		errs = append(errs, fmt.Errorf("milvus nlist and nprobe must be positive"))
	}
	if o.NProbe > o.NList {
		errs = append(errs, fmt.Errorf("milvus nprobe (%d) cannot exceed nlist (%d)", o.NProbe, o.NList))
	}
	return errs
}

// Complete completes the options.
func (o *Options) Complete() error {
	if o.Database == "" {
		o.Database = "default"
	}
	return nil
}
