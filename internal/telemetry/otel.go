package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/parrot/internal/core"
)

func init() {
	core.RegisterModule(&Tracing{})
}

// TracingConfig configures the OTLP/HTTP trace exporter.
type TracingConfig struct {
	// Endpoint is the collector host:port, e.g. "localhost:4318".
	Endpoint string `yaml:"endpoint"`
	// URLPath overrides the default "/v1/traces".
	URLPath string `yaml:"url_path"`
	// Insecure sends traces over plain HTTP.
	Insecure bool `yaml:"insecure"`
	// SampleRatio is the fraction of root spans kept, in [0, 1].
	SampleRatio *float64 `yaml:"sample_ratio"`
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`
	// Headers are added to every export request.
	Headers map[string]string `yaml:"headers"`
}

func (c *TracingConfig) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRatio == nil {
		ratio := 1.0
		c.SampleRatio = &ratio
	}
	if c.ServiceName == "" {
		c.ServiceName = "parrot"
	}
}

func (c *TracingConfig) validate() error {
	if r := *c.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.otel: sample_ratio must be within [0, 1], got %v", r)
	}
	return nil
}

// Tracing is the telemetry.otel module. It installs a global tracer
// provider exporting spans over OTLP/HTTP while the app runs.
type Tracing struct {
	config   TracingConfig
	logger   *slog.Logger
	provider *sdktrace.TracerProvider
}

// ModuleInfo implements core.Module.
func (t *Tracing) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telemetry.otel",
		New: func() core.Module { return &Tracing{} },
	}
}

// Configure implements core.Configurable.
func (t *Tracing) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return err
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (t *Tracing) Provision(ctx *core.AppContext) error {
	t.logger = ctx.Logger
	if t.config.SampleRatio == nil {
		t.config.defaults()
	}
	return nil
}

// Validate implements core.Validator.
func (t *Tracing) Validate() error {
	return t.config.validate()
}

// Start implements core.Starter.
func (t *Tracing) Start() error {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.config.Endpoint)}
	if t.config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if t.config.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(t.config.URLPath))
	}
	if len(t.config.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(t.config.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("telemetry.otel: creating exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", t.config.ServiceName))
	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*t.config.SampleRatio))),
	)
	otel.SetTracerProvider(t.provider)

	t.logger.Info("tracing enabled", "endpoint", t.config.Endpoint, "sample_ratio", *t.config.SampleRatio)
	return nil
}

// Stop implements core.Stopper. Buffered spans are flushed before returning.
func (t *Tracing) Stop(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	err := t.provider.Shutdown(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telemetry.otel: shutdown: %w", err)
	}
	return nil
}

// Interface guards.
var (
	_ core.Module       = (*Tracing)(nil)
	_ core.Configurable = (*Tracing)(nil)
	_ core.Provisioner  = (*Tracing)(nil)
	_ core.Validator    = (*Tracing)(nil)
	_ core.Starter      = (*Tracing)(nil)
	_ core.Stopper      = (*Tracing)(nil)
)
