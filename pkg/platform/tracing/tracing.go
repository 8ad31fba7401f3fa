// Package tracing starts OpenTelemetry spans for service operations. Spans
// go to the global provider; with no provider installed they are no-ops.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/requestcontext"
)

// Tracer wraps a named otel tracer.
type Tracer struct {
	tracer trace.Tracer
}

func New(name string) Tracer {
	return Tracer{tracer: otel.Tracer(name)}
}

// Start opens a span tagged with the request id and actor from ctx.
func (t Tracer) Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if reqID := requestcontext.RequestID(ctx); reqID != "" {
		attrs = append(attrs, attribute.String("request.id", reqID))
	}
	if actor := requestcontext.ActorID(ctx); actor != "" {
		attrs = append(attrs, attribute.String("actor.id", string(actor)))
	}
	return t.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
}

// End records err on the span and closes it. Client errors (validation,
// not found, authorization) are tagged but do not mark the span as failed.
func End(span trace.Span, err error) {
	if err != nil {
		code := dErrors.CodeOf(err)
		span.SetAttributes(attribute.String("error.code", string(code)))
		if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(code))
		}
	}
	span.End()
}
