// Package otel provides span helpers shared by the sync engine, the
// reconciler and the review API.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on sync and review spans.
const (
	AttrTickID        = attribute.Key("sync.tick_id")
	AttrTickOutcome   = attribute.Key("sync.outcome")
	AttrItemID        = attribute.Key("catalog.item_id")
	AttrSupplierName  = attribute.Key("supplier.name")
	AttrQueryMode     = attribute.Key("supplier.query_mode")
	AttrQueryStatus   = attribute.Key("supplier.status")
	AttrMatchCount    = attribute.Key("supplier.match_count")
	AttrChangeID      = attribute.Key("changelog.entry_id")
	AttrChangeKind    = attribute.Key("changelog.kind")
	AttrFailureStreak = attribute.Key("sync.consecutive_failures")
)

// StartSpan starts a span on tracer, or returns the span already in ctx when
// tracer is nil so callers never branch on tracing being enabled.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span failed. The status
// description stays generic; the error text is kept on the span event only,
// since supplier errors can carry request URLs.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
