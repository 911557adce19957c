package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "resale-delister/queue"

// QueueMetrics records sale event pipeline metrics.
type QueueMetrics struct {
	eventsProcessed  metric.Int64Counter
	eventDuration    metric.Float64Histogram
	jobsCreated      metric.Int64Counter
	batchDuration    metric.Float64Histogram
	batchSize        metric.Int64Histogram
	retriesScheduled metric.Int64Counter
	retryDelay       metric.Float64Histogram
	eventsEscalated  metric.Int64Counter
	eventsCleaned    metric.Int64Counter
}

// New builds the instruments on the global meter provider.
func New() (*QueueMetrics, error) {
	return NewWithMeter(otel.Meter(meterName))
}

// NewNop records nothing.
func NewNop() *QueueMetrics {
	m, _ := NewWithMeter(noop.NewMeterProvider().Meter(meterName))
	return m
}

func NewWithMeter(meter metric.Meter) (*QueueMetrics, error) {
	var (
		m   QueueMetrics
		err error
	)

	m.eventsProcessed, err = meter.Int64Counter(
		"delister.sale_events.processed",
		metric.WithDescription("Sale events processed, by outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("QueueMetrics - New - eventsProcessed: %w", err)
	}

	m.eventDuration, err = meter.Float64Histogram(
		"delister.sale_event.duration",
		metric.WithDescription("Duration of a single sale event processing in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("QueueMetrics - New - eventDuration: %w", err)
	}

	m.jobsCreated, err = meter.Int64Counter(
		"delister.jobs.created",
		metric.WithDescription("Delisting jobs materialized from sale events"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("QueueMetrics - New - jobsCreated: %w", err)
	}

	m.batchDuration, err = meter.Float64Histogram(
		"delister.batch.duration",
		metric.WithDescription("Duration of a queue batch in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("QueueMetrics - New - batchDuration: %w", err)
	}

	m.batchSize, err = meter.Int64Histogram(
		"delister.batch.size",
		metric.WithDescription("Events handled per batch"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("QueueMetrics - New - batchSize: %w", err)
	}

	m.retriesScheduled, err = meter.Int64Counter(
		"delister.retries.scheduled",
		metric.WithDescription("Retries scheduled for sale events, by error kind"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("QueueMetrics - New - retriesScheduled: %w", err)
	}

	m.retryDelay, err = meter.Float64Histogram(
		"delister.retry.delay",
		metric.WithDescription("Backoff applied before the next attempt in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("QueueMetrics - New - retryDelay: %w", err)
	}

	m.eventsEscalated, err = meter.Int64Counter(
		"delister.sale_events.escalated",
		metric.WithDescription("Sale events escalated for operator action"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("QueueMetrics - New - eventsEscalated: %w", err)
	}

	m.eventsCleaned, err = meter.Int64Counter(
		"delister.sale_events.cleaned",
		metric.WithDescription("Processed sale events removed by cleanup"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("QueueMetrics - New - eventsCleaned: %w", err)
	}

	return &m, nil
}

func (m *QueueMetrics) EventProcessed(ctx context.Context, outcome string, kind errs.Kind, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("error.kind", string(kind)),
	)
	m.eventsProcessed.Add(ctx, 1, attrs)
	m.eventDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *QueueMetrics) JobCreated(ctx context.Context, soldOn entity.Marketplace) {
	m.jobsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("sold_on", string(soldOn))))
}

func (m *QueueMetrics) BatchCompleted(ctx context.Context, stats entity.ProcessingStats, duration time.Duration) {
	m.batchDuration.Record(ctx, duration.Seconds())
	m.batchSize.Record(ctx, int64(stats.Processed+stats.Failed+stats.Retried))
}

func (m *QueueMetrics) RetryScheduled(ctx context.Context, kind errs.Kind, delay time.Duration) {
	attrs := metric.WithAttributes(attribute.String("error.kind", string(kind)))
	m.retriesScheduled.Add(ctx, 1, attrs)
	m.retryDelay.Record(ctx, delay.Seconds(), attrs)
}

func (m *QueueMetrics) EventsEscalated(ctx context.Context, n int) {
	if n > 0 {
		m.eventsEscalated.Add(ctx, int64(n))
	}
}

func (m *QueueMetrics) EventsCleaned(ctx context.Context, n int64) {
	if n > 0 {
		m.eventsCleaned.Add(ctx, n)
	}
}
