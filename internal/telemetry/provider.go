package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config controls OTLP/HTTP export of traces and metrics.
type Config struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name" json:"service_name"`
	ServiceVersion string  `mapstructure:"service_version" yaml:"service_version" json:"service_version"`
	Environment    string  `mapstructure:"environment" yaml:"environment" json:"environment"`
	Endpoint       string  `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"` // host:port of the collector
	Insecure       bool    `mapstructure:"insecure" yaml:"insecure" json:"insecure"`
	SamplingRatio  float64 `mapstructure:"sampling_ratio" yaml:"sampling_ratio" json:"sampling_ratio"`
}

// Provider owns the SDK providers installed as otel globals.
type Provider struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// NewProvider installs exporting providers when cfg.Enabled. Otherwise the
// otel globals keep their no-op defaults and the returned Provider is empty.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{}
	if !cfg.Enabled {
		return p, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "gamelib"
	}
	if cfg.SamplingRatio <= 0 {
		cfg.SamplingRatio = 1
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if p.TracerProvider, err = initTracing(ctx, res, cfg); err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	otel.SetTracerProvider(p.TracerProvider)

	if p.MeterProvider, err = initMetrics(ctx, res, cfg); err != nil {
		_ = p.TracerProvider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	otel.SetMeterProvider(p.MeterProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

func initTracing(ctx context.Context, res *resource.Resource, cfg Config) (*trace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithURLPath("/v1/traces")}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exp, trace.WithBatchTimeout(5*time.Second)),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SamplingRatio))),
	), nil
}

func initMetrics(ctx context.Context, res *resource.Resource, cfg Config) (*metric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithURLPath("/v1/metrics")}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exp, metric.WithInterval(30*time.Second))),
	), nil
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
