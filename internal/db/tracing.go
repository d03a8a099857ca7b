package db

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// StoreTracerName is the name used for the database store tracer.
const StoreTracerName = "github.com/stacklok/supplier-sync/db"

const (
	attrRecordID    = attribute.Key("supplier.record_id")
	attrResultCount = attribute.Key("result.count")
)

// startSpan starts a database span carrying db.system, or returns the span
// already in ctx when tracing is disabled.
func (s *Store) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	opts = append([]trace.SpanStartOption{trace.WithAttributes(semconv.DBSystemPostgreSQL)}, opts...)
	return s.tracer.Start(ctx, name, opts...)
}

// recordError keeps the status description generic so SQL text never
// reaches the span status.
func recordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
