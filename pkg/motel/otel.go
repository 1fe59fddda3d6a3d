package motel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

// TracerKey carries a caller-provided tracer through a context.
const TracerKey contextKey = "fluree_tracer"

// NewTracerFromContext returns a trace.Tracer from the context, or the global
// default tracer when none was injected.
func NewTracerFromContext(ctx context.Context) trace.Tracer {
	if tracer, ok := ctx.Value(TracerKey).(trace.Tracer); ok && tracer != nil {
		return tracer
	}

	return otel.Tracer("fluree")
}

// ContextWithTracer returns a context carrying the given tracer.
func ContextWithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	return context.WithValue(ctx, TracerKey, tracer)
}

// HandleSpanError marks the span failed and records the error on it.
func HandleSpanError(span *trace.Span, message string, err error) {
	(*span).SetStatus(codes.Error, message+": "+err.Error())
	(*span).RecordError(err)
}
