package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/supplier-sync/sync"
)

// SyncMetrics holds the OpenTelemetry instruments for the sync engine
type SyncMetrics struct {
	tickDuration        metric.Float64Histogram
	remoteQueries       metric.Int64Counter
	changeEntries       metric.Int64Counter
	consecutiveFailures metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	tickDuration, err := meter.Float64Histogram(
		"supplier_sync_tick_duration_seconds",
		metric.WithDescription("Duration of sync ticks in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 60),
	)
	if err != nil {
		return nil, err
	}

	remoteQueries, err := meter.Int64Counter(
		"supplier_sync_remote_queries_total",
		metric.WithDescription("Number of supplier catalog queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}

	changeEntries, err := meter.Int64Counter(
		"supplier_sync_change_entries_total",
		metric.WithDescription("Number of change log entries written"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	consecutiveFailures, err := meter.Int64Gauge(
		"supplier_sync_consecutive_failures",
		metric.WithDescription("Consecutive failed ticks since the last success"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		tickDuration:        tickDuration,
		remoteQueries:       remoteQueries,
		changeEntries:       changeEntries,
		consecutiveFailures: consecutiveFailures,
	}, nil
}

// RecordTick records the duration and outcome of a tick
func (m *SyncMetrics) RecordTick(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil || m.tickDuration == nil {
		return
	}
	m.tickDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRemoteQuery counts a supplier query by mode and status
func (m *SyncMetrics) RecordRemoteQuery(ctx context.Context, mode, status string) {
	if m == nil || m.remoteQueries == nil {
		return
	}
	m.remoteQueries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	))
}

// RecordChangeEntry counts a change log entry by kind
func (m *SyncMetrics) RecordChangeEntry(ctx context.Context, kind string) {
	if m == nil || m.changeEntries == nil {
		return
	}
	m.changeEntries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordConsecutiveFailures records the persisted failure counter
func (m *SyncMetrics) RecordConsecutiveFailures(ctx context.Context, failures int) {
	if m == nil || m.consecutiveFailures == nil {
		return
	}
	m.consecutiveFailures.Record(ctx, int64(failures))
}
