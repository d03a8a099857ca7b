package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewSyncMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	metrics, err := NewSyncMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, metrics)

	// Every recorder is a no-op on a nil receiver
	ctx := context.Background()
	metrics.RecordTick(ctx, "synced", time.Second)
	metrics.RecordRemoteQuery(ctx, "exact", "ok")
	metrics.RecordChangeEntry(ctx, "added")
	metrics.RecordConsecutiveFailures(ctx, 3)
}

func TestSyncMetrics_Record(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(ctx) }()

	metrics, err := NewSyncMetrics(mp)
	require.NoError(t, err)

	metrics.RecordTick(ctx, "synced", 250*time.Millisecond)
	metrics.RecordTick(ctx, "failed", time.Second)
	metrics.RecordRemoteQuery(ctx, "fuzzy", "ok")
	metrics.RecordChangeEntry(ctx, "deleted")
	metrics.RecordConsecutiveFailures(ctx, 4)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != SyncMetricsMeterName {
			continue
		}
		for _, m := range scope.Metrics {
			names[m.Name] = true
			if m.Name == "supplier_sync_consecutive_failures" {
				gauge, ok := m.Data.(metricdata.Gauge[int64])
				require.True(t, ok)
				require.Len(t, gauge.DataPoints, 1)
				assert.Equal(t, int64(4), gauge.DataPoints[0].Value)
			}
			if m.Name == "supplier_sync_tick_duration_seconds" {
				hist, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				assert.Len(t, hist.DataPoints, 2, "one series per outcome")
			}
		}
	}

	for _, name := range []string{
		"supplier_sync_tick_duration_seconds",
		"supplier_sync_remote_queries_total",
		"supplier_sync_change_entries_total",
		"supplier_sync_consecutive_failures",
	} {
		assert.True(t, names[name], "missing metric %s", name)
	}
}
