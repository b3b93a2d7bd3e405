// Package observability provides an OpenTelemetry metrics extension for
// the ingestion pipeline. Register it on the hook registry to track
// recorded events, drops, delivery failures, poll failures, and engine
// stops per cluster.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/converged-computing/flux-mcp-server/hook"
	"github.com/converged-computing/flux-mcp-server/jobevent"
)

// meterName is the instrumentation scope name.
const meterName = "github.com/converged-computing/flux-mcp-server"

// Compile-time interface checks.
var (
	_ hook.Extension      = (*MetricsExtension)(nil)
	_ hook.EventRecorded  = (*MetricsExtension)(nil)
	_ hook.EventDropped   = (*MetricsExtension)(nil)
	_ hook.DeliveryFailed = (*MetricsExtension)(nil)
	_ hook.PollFailed     = (*MetricsExtension)(nil)
	_ hook.EngineStopped  = (*MetricsExtension)(nil)
)

// MetricsExtension records ingestion metrics on every lifecycle hook.
//
// Instruments:
//   - flux.events.recorded (Int64Counter): events persisted, by cluster
//     and event type
//   - flux.events.record_latency (Float64Histogram): seconds from poll
//     to durable record, by cluster
//   - flux.events.dropped (Int64Counter): journal entries discarded
//     before normalization, by cluster
//   - flux.events.delivery_failures (Int64Counter): sink rejections, by
//     cluster
//   - flux.engine.poll_failures (Int64Counter): transport failures in
//     the poll loop, by cluster
//   - flux.engine.stops (Int64Counter): engine shutdowns, by cluster
type MetricsExtension struct {
	recorded         metric.Int64Counter
	recordLatency    metric.Float64Histogram
	dropped          metric.Int64Counter
	deliveryFailures metric.Int64Counter
	pollFailures     metric.Int64Counter
	stops            metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. With no provider configured the instruments are noop
// and the extension is a pass-through.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific
// MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// Instruments are created once here. On error, the OTel API returns
	// noop instruments so the extension degrades gracefully.
	recorded, err := meter.Int64Counter(
		"flux.events.recorded",
		metric.WithDescription("Number of job events durably recorded"),
		metric.WithUnit("{event}"),
	)
	_ = err // noop fallback guaranteed by OTel API contract

	recordLatency, err := meter.Float64Histogram(
		"flux.events.record_latency",
		metric.WithDescription("Seconds from poll to durable record"),
		metric.WithUnit("s"),
	)
	_ = err

	dropped, err := meter.Int64Counter(
		"flux.events.dropped",
		metric.WithDescription("Journal entries discarded before normalization"),
		metric.WithUnit("{event}"),
	)
	_ = err

	deliveryFailures, err := meter.Int64Counter(
		"flux.events.delivery_failures",
		metric.WithDescription("Events rejected by the sink"),
		metric.WithUnit("{event}"),
	)
	_ = err

	pollFailures, err := meter.Int64Counter(
		"flux.engine.poll_failures",
		metric.WithDescription("Unexpected poll loop failures"),
		metric.WithUnit("{failure}"),
	)
	_ = err

	stops, err := meter.Int64Counter(
		"flux.engine.stops",
		metric.WithDescription("Engine shutdowns"),
		metric.WithUnit("{stop}"),
	)
	_ = err

	return &MetricsExtension{
		recorded:         recorded,
		recordLatency:    recordLatency,
		dropped:          dropped,
		deliveryFailures: deliveryFailures,
		pollFailures:     pollFailures,
		stops:            stops,
	}
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnEventRecorded implements hook.EventRecorded.
func (m *MetricsExtension) OnEventRecorded(ctx context.Context, evt *jobevent.JobEvent, elapsed time.Duration) error {
	attrs := metric.WithAttributes(
		attribute.String("cluster", evt.Cluster),
		attribute.String("event_type", string(evt.Type)),
	)
	m.recorded.Add(ctx, 1, attrs)
	m.recordLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("cluster", evt.Cluster),
	))
	return nil
}

// OnEventDropped implements hook.EventDropped.
func (m *MetricsExtension) OnEventDropped(ctx context.Context, clusterName string, _ error) error {
	m.dropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cluster", clusterName),
	))
	return nil
}

// OnDeliveryFailed implements hook.DeliveryFailed.
func (m *MetricsExtension) OnDeliveryFailed(ctx context.Context, evt *jobevent.JobEvent, _ error) error {
	m.deliveryFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cluster", evt.Cluster),
	))
	return nil
}

// OnPollFailed implements hook.PollFailed.
func (m *MetricsExtension) OnPollFailed(ctx context.Context, clusterName string, _ error) error {
	m.pollFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cluster", clusterName),
	))
	return nil
}

// OnEngineStopped implements hook.EngineStopped.
func (m *MetricsExtension) OnEngineStopped(ctx context.Context, clusterName string) error {
	m.stops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cluster", clusterName),
	))
	return nil
}
