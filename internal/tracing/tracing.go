// Package tracing provides the telemetry.otlp module, which installs a
// global OpenTelemetry tracer provider exporting spans over OTLP/HTTP.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sori-ai/sori/internal/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// ModuleID is the config key of the tracing module.
const ModuleID core.ModuleID = "telemetry.otlp"

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Config is the YAML configuration of telemetry.otlp.
type Config struct {
	// Endpoint is host:port of the OTLP/HTTP collector.
	Endpoint string `yaml:"endpoint"`
	// URLPath overrides the default /v1/traces.
	URLPath     string            `yaml:"url_path"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	ServiceName string            `yaml:"service_name"`
	// SampleRatio is the fraction of root traces kept, in [0, 1].
	SampleRatio *float64 `yaml:"sample_ratio"`
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.ServiceName == "" {
		c.ServiceName = "sori"
	}
	if c.SampleRatio == nil {
		r := 1.0
		c.SampleRatio = &r
	}
}

func (c *Config) validate() error {
	if r := *c.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("tracing: sample_ratio %v out of range [0, 1]", r)
	}
	return nil
}

// Module owns the tracer provider for the lifetime of the process.
type Module struct {
	config   Config
	logger   *slog.Logger
	provider *sdktrace.TracerProvider
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("tracing: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(m.config.Endpoint)}
	if m.config.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(m.config.URLPath))
	}
	if m.config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(m.config.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(m.config.Headers))
	}

	exp, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("tracing: create exporter: %w", err)
	}

	tp, err := NewProvider(m.config.ServiceName, *m.config.SampleRatio, sdktrace.WithBatcher(exp))
	if err != nil {
		return err
	}
	m.provider = tp
	ctx.RegisterService("tracing.provider", trace.TracerProvider(tp))
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start installs the provider globally so every otel.Tracer call picks it up.
func (m *Module) Start() error {
	otel.SetTracerProvider(m.provider)
	m.logger.Info("tracing enabled",
		"endpoint", m.config.Endpoint,
		"service", m.config.ServiceName,
	)
	return nil
}

// Stop flushes buffered spans.
func (m *Module) Stop(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	err := m.provider.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Warn("tracing: flush timed out, spans dropped")
	}
	return err
}

// NewProvider builds a tracer provider tagged with serviceName and sampling
// root spans at ratio. Extra options typically add an exporter.
func NewProvider(serviceName string, ratio float64, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	all := append([]sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(res),
	}, opts...)
	return sdktrace.NewTracerProvider(all...), nil
}
