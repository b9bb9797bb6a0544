package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// Attribute keys shared by manifest and skill spans.
const (
	AttrManifestPath  = attribute.Key("manifest.path")
	AttrManifestStage = attribute.Key("manifest.stage")
	AttrErrorKind     = attribute.Key("skillrun.error.kind")
)

// Tracer returns a named tracer from the global provider. An empty name
// falls back to ServiceName.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = ServiceName
	}
	return otel.GetTracerProvider().Tracer(name)
}

// PhaseAttributes describes one executor phase of a manifest run.
func PhaseAttributes(path, stage string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrManifestPath.String(path),
		AttrManifestStage.String(stage),
	}
}

// WithSpan runs f inside a span named name. The span status follows the
// returned error.
func WithSpan(ctx context.Context, name string, f func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := Tracer(ServiceName).Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	if err := f(ctx); err != nil {
		markFailed(span, err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// RecordError marks the span carried by ctx as failed with err.
func RecordError(ctx context.Context, err error, opts ...trace.EventOption) {
	markFailed(trace.SpanFromContext(ctx), err, opts...)
}

func markFailed(span trace.Span, err error, opts ...trace.EventOption) {
	if kind, ok := skills.KindOf(err); ok {
		span.SetAttributes(AttrErrorKind.String(string(kind)))
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}
