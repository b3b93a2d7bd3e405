package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/converged-computing/flux-mcp-server/jobevent"
	"github.com/converged-computing/flux-mcp-server/observability"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func testEvent() *jobevent.JobEvent {
	return &jobevent.JobEvent{
		Cluster:   "tiny",
		JobID:     7,
		Type:      jobevent.TypeSubmit,
		Timestamp: 1.0,
	}
}

func TestMetricsRecordsEvents(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))

	ctx := context.Background()
	if err := m.OnEventRecorded(ctx, testEvent(), 5*time.Millisecond); err != nil {
		t.Fatalf("OnEventRecorded: %v", err)
	}
	if err := m.OnEventRecorded(ctx, testEvent(), 7*time.Millisecond); err != nil {
		t.Fatalf("OnEventRecorded: %v", err)
	}

	rm := collectMetrics(t, reader)

	counter := findMetric(rm, "flux.events.recorded")
	if counter == nil {
		t.Fatal("flux.events.recorded metric not found")
	}
	sum, ok := counter.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("expected Sum[int64] data type")
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("recorded total = %d, want 2", total)
	}

	hist := findMetric(rm, "flux.events.record_latency")
	if hist == nil {
		t.Fatal("flux.events.record_latency metric not found")
	}
	if _, ok := hist.Data.(metricdata.Histogram[float64]); !ok {
		t.Fatal("expected Histogram[float64] data type")
	}
}

func TestMetricsCountsDropsAndFailures(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))

	ctx := context.Background()
	cause := errors.New("no job id")
	if err := m.OnEventDropped(ctx, "tiny", cause); err != nil {
		t.Fatalf("OnEventDropped: %v", err)
	}
	if err := m.OnDeliveryFailed(ctx, testEvent(), errors.New("store down")); err != nil {
		t.Fatalf("OnDeliveryFailed: %v", err)
	}
	if err := m.OnPollFailed(ctx, "tiny", errors.New("broker lost")); err != nil {
		t.Fatalf("OnPollFailed: %v", err)
	}
	if err := m.OnEngineStopped(ctx, "tiny"); err != nil {
		t.Fatalf("OnEngineStopped: %v", err)
	}

	rm := collectMetrics(t, reader)
	for _, name := range []string{
		"flux.events.dropped",
		"flux.events.delivery_failures",
		"flux.engine.poll_failures",
		"flux.engine.stops",
	} {
		metric := findMetric(rm, name)
		if metric == nil {
			t.Errorf("%s metric not found", name)
			continue
		}
		sum, ok := metric.Data.(metricdata.Sum[int64])
		if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
			t.Errorf("%s = %+v, want one datapoint of 1", name, metric.Data)
		}
	}
}

func TestMetricsName(t *testing.T) {
	m := observability.NewMetricsExtension()
	if m.Name() != "observability-metrics" {
		t.Errorf("Name = %q", m.Name())
	}
}
