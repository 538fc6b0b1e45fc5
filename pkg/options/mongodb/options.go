// Package mongodb provides MongoDB options.
package mongodb

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/seeksense/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// PasswordEnv is read when no password is configured.
const PasswordEnv = "MONGODB_PASSWORD"

// redactedPassword is the placeholder used when serializing passwords.
const redactedPassword = "[REDACTED]"

// Options defines configuration options for MongoDB.
type Options struct {
	URI      string `json:"uri" mapstructure:"uri"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`

	MaxPoolSize     uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	MinPoolSize     uint64        `json:"min-pool-size" mapstructure:"min-pool-size"`
	MaxConnIdleTime time.Duration `json:"max-conn-idle-time" mapstructure:"max-conn-idle-time"`

	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`

	ReplicaSet string `json:"replica-set" mapstructure:"replica-set"`
	AuthSource string `json:"auth-source" mapstructure:"auth-source"`
	Direct     bool   `json:"direct" mapstructure:"direct"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                   "127.0.0.1",
		Port:                   27017,
		Database:               "seeksense",
		MaxPoolSize:            100,
		MinPoolSize:            0,
		MaxConnIdleTime:        5 * time.Minute,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 10 * time.Second,
		AuthSource:             "admin",
	}
}

// String returns a string representation with password redacted.
func (o *Options) String() string {
	password := ""
	if o.Password != "" {
		password = redactedPassword
	}
	return fmt.Sprintf("MongoDB{host=%s, port=%d, user=%s, password=%s, database=%s}",
		o.Host, o.Port, o.Username, password, o.Database)
}

// Complete reads the password from the environment when it is not set.
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv(PasswordEnv)
	}
	return nil
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.URI == "" {
		if o.Host == "" {
			errs = append(errs, fmt.Errorf("mongodb host is required when uri is not provided"))
		}
		if o.Port <= 0 || o.Port > 65535 {
			errs = append(errs, fmt.Errorf("mongodb port must be between 1 and 65535"))
		}
	}
	if o.Database == "" {
		errs = append(errs, fmt.Errorf("mongodb database is required"))
	}
	if o.MinPoolSize > o.MaxPoolSize && o.MaxPoolSize > 0 {
		errs = append(errs, fmt.Errorf("mongodb min-pool-size cannot exceed max-pool-size"))
	}
	return errs
}

// AddFlags adds flags for MongoDB options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "mongodb."
	fs.StringVar(&o.URI, p+"uri", o.URI, "MongoDB URI (mongodb://...), overrides host and port.")
	fs.StringVar(&o.Host, p+"host", o.Host, "MongoDB service host address.")
	fs.IntVar(&o.Port, p+"port", o.Port, "MongoDB service port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Username for access to mongodb service.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Password for access to mongodb (prefer the "+PasswordEnv+" env var).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database name for the server to use.")
	fs.Uint64Var(&o.MaxPoolSize, p+"max-pool-size", o.MaxPoolSize, "Maximum number of connections in the pool.")
	fs.Uint64Var(&o.MinPoolSize, p+"min-pool-size", o.MinPoolSize, "Minimum number of connections in the pool.")
	fs.DurationVar(&o.MaxConnIdleTime, p+"max-conn-idle-time", o.MaxConnIdleTime, "Maximum connection idle time.")
	fs.DurationVar(&o.ConnectTimeout, p+"connect-timeout", o.ConnectTimeout, "Timeout for connection.")
	fs.DurationVar(&o.ServerSelectionTimeout, p+"server-selection-timeout", o.ServerSelectionTimeout, "Timeout for server selection.")
	fs.StringVar(&o.ReplicaSet, p+"replica-set", o.ReplicaSet, "MongoDB replica set name.")
	fs.StringVar(&o.AuthSource, p+"auth-source", o.AuthSource, "MongoDB authentication source.")
	fs.BoolVar(&o.Direct, p+"direct", o.Direct, "MongoDB direct connection.")
}

// BuildURI builds a MongoDB URI from options.
// If URI is already set in options, it returns that.
func BuildURI(opts *Options) string {
	if opts.URI != "" {
		return opts.URI
	}

	var uri strings.Builder
	uri.WriteString("mongodb://")

	if opts.Username != "" {
		uri.WriteString(url.QueryEscape(opts.Username))
		if opts.Password != "" {
			uri.WriteString(":")
			uri.WriteString(url.QueryEscape(opts.Password))
		}
		uri.WriteString("@")
	}

	uri.WriteString(opts.Host)
	if opts.Port != 0 {
		fmt.Fprintf(&uri, ":%d", opts.Port)
	}
	uri.WriteString("/")
	uri.WriteString(opts.Database)

	params := url.Values{}
	if opts.AuthSource != "" && opts.AuthSource != "admin" {
		params.Add("authSource", opts.AuthSource)
	}
	if opts.ReplicaSet != "" {
		params.Add("replicaSet", opts.ReplicaSet)
	}
	if opts.Direct {
		params.Add("directConnection", "true")
	}
	if len(params) > 0 {
		uri.WriteString("?")
		uri.WriteString(params.Encode())
	}

	return uri.String()
}
