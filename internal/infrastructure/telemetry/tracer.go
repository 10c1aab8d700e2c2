// Package telemetry wires OpenTelemetry tracing through the
// reconciliation core: HTTP requests via otelgin, database calls via
// otelgorm and background jobs via explicit spans.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// TracerName identifies application-level spans.
const TracerName = "immoflow-backend"

// Config selects the OTLP collector and the sampling behaviour.
type Config struct {
	Enabled       bool
	Endpoint      string
	SamplingRatio float64
	Insecure      bool
}

// Provider owns the SDK tracer provider lifecycle. When tracing is
// disabled it stays empty and every span helper degrades to a no-op.
type Provider struct {
	provider *sdktrace.TracerProvider
	logger   *zap.Logger
}

// NewProvider connects an OTLP gRPC exporter and installs the global
// tracer provider and propagators. With cfg.Enabled false it returns a
// Provider whose Shutdown is a no-op, so callers never branch.
func NewProvider(ctx context.Context, cfg Config, serviceName string, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{logger: logger}

	if !cfg.Enabled {
		logger.Info("tracing disabled")
		return p, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect OTLP exporter %s: %w", cfg.Endpoint, err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRatio >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SamplingRatio <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRatio)
	}

	p.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(p.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
	)
	return p, nil
}

// Shutdown flushes pending spans. Bounded to ten seconds so a hanging
// collector cannot stall server shutdown.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.provider.Shutdown(ctx); err != nil {
		p.logger.Error("tracer shutdown failed", zap.Error(err))
		return fmt.Errorf("shut down tracer provider: %w", err)
	}
	return nil
}
