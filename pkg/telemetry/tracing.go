// Package telemetry provides OpenTelemetry tracing for skillrun. Manifest
// runs open one span per executor phase; the CLI opens one span per command.
package telemetry

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/version"
)

// ServiceName is reported as the service name of every trace.
const ServiceName = "skillrun"

// Sampler names accepted in the tracing settings.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// Config configures the tracer provider.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// SamplerType is one of SamplerAlways, SamplerNever or SamplerRatio.
	SamplerType  string
	SamplerRatio float64
}

// ConfigFromSettings builds the tracer configuration from skillrun settings.
func ConfigFromSettings(s config.TracingSettings) Config {
	return Config{
		Enabled:        s.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: version.Get().Version,
		SamplerType:    s.Sampler,
		SamplerRatio:   s.Ratio,
	}
}

// InitTracer installs the global tracer provider and returns its shutdown
// function. When tracing is disabled nothing is installed and the shutdown
// function is a no-op. The OTLP/HTTP exporter reads its endpoint and headers
// from the standard OTEL_EXPORTER_OTLP_* variables.
func InitTracer(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create trace resource")
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create trace exporter")
	}

	provider := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSpanProcessor(trace.NewBatchSpanProcessor(exporter,
			trace.WithMaxExportBatchSize(512),
			trace.WithBatchTimeout(time.Second),
		)),
		trace.WithSampler(getSampler(cfg)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Shutting the provider down flushes the batch processor and stops the
	// exporter with it.
	return provider.Shutdown, nil
}

func getSampler(cfg Config) trace.Sampler {
	switch cfg.SamplerType {
	case SamplerNever:
		return trace.NeverSample()
	case SamplerRatio:
		return trace.ParentBased(trace.TraceIDRatioBased(cfg.SamplerRatio))
	default:
		return trace.AlwaysSample()
	}
}
