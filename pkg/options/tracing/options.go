// Package tracing provides OpenTelemetry tracing options.
package tracing

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/seeksense/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 导出器类型。
const (
	ExporterOTLPGRPC = "otlp_grpc"
	ExporterOTLPHTTP = "otlp_http"
	ExporterStdout   = "stdout"
	ExporterNoop     = "noop"
)

// Options 链路追踪配置。关闭时使用 OpenTelemetry 默认的空实现。
type Options struct {
	// Enabled enables or disables tracing.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Exporter is one of otlp_grpc, otlp_http, stdout, noop.
	Exporter string `json:"exporter" mapstructure:"exporter"`

	// Endpoint is the OTLP collector endpoint, e.g. localhost:4317.
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`

	// Insecure disables TLS for the OTLP connection.
	Insecure bool `json:"insecure" mapstructure:"insecure"`

	// SampleRatio is the root sampling ratio (0.0 to 1.0). Child spans follow the parent.
	SampleRatio float64 `json:"sample-ratio" mapstructure:"sample-ratio"`

	// Environment is the deployment environment attached to the resource.
	Environment string `json:"environment" mapstructure:"environment"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Enabled:     false,
		Exporter:    ExporterOTLPGRPC,
		Endpoint:    "localhost:4317",
		Insecure:    true,
		SampleRatio: 1.0,
	}
}

// AddFlags adds flags for tracing options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "tracing."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable OpenTelemetry tracing.")
	fs.StringVar(&o.Exporter, p+"exporter", o.Exporter, "Span exporter (otlp_grpc, otlp_http, stdout, noop).")
	fs.StringVar(&o.Endpoint, p+"endpoint", o.Endpoint, "OTLP collector endpoint.")
	fs.BoolVar(&o.Insecure, p+"insecure", o.Insecure, "Disable TLS for the OTLP connection.")
	fs.Float64Var(&o.SampleRatio, p+"sample-ratio", o.SampleRatio, "Root span sampling ratio (0.0-1.0).")
	fs.StringVar(&o.Environment, p+"environment", o.Environment, "Deployment environment.")
}

// Validate validates the tracing options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	switch o.Exporter {
	case ExporterOTLPGRPC, ExporterOTLPHTTP:
		if o.Endpoint == "" {
			errs = append(errs, fmt.Errorf("tracing.endpoint is required for exporter %q", o.Exporter))
		}
	case ExporterStdout, ExporterNoop:
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not supported", o.Exporter))
	}
	if o.SampleRatio < 0 || o.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample-ratio must be between 0 and 1"))
	}
	return errs
}

// Complete completes the tracing options with defaults.
func (o *Options) Complete() error {
	if o.Exporter == "" {
		o.Exporter = ExporterOTLPGRPC
	}
	return nil
}
