package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestQueueMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewWithMeter(provider.Meter(meterName))
	require.NoError(t, err)

	ctx := context.Background()
	m.EventProcessed(ctx, "success", errs.KindNone, 10*time.Millisecond)
	m.EventProcessed(ctx, "retried", errs.KindRateLimited, 5*time.Millisecond)
	m.JobCreated(ctx, entity.Ebay)
	m.RetryScheduled(ctx, errs.KindRateLimited, time.Minute)
	m.BatchCompleted(ctx, entity.ProcessingStats{Processed: 1, Retried: 1}, time.Second)
	m.EventsEscalated(ctx, 2)
	m.EventsEscalated(ctx, 0)
	m.EventsCleaned(ctx, 3)

	got := collect(t, reader)

	assert.Equal(t, int64(2), sumOf(t, got["delister.sale_events.processed"]))
	assert.Equal(t, int64(1), sumOf(t, got["delister.jobs.created"]))
	assert.Equal(t, int64(1), sumOf(t, got["delister.retries.scheduled"]))
	assert.Equal(t, int64(2), sumOf(t, got["delister.sale_events.escalated"]))
	assert.Equal(t, int64(3), sumOf(t, got["delister.sale_events.cleaned"]))
	assert.Contains(t, got, "delister.batch.duration")
}

func TestNew_GlobalProvider(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.EventProcessed(context.Background(), "failed", errs.KindNotFound, time.Millisecond)
}
