package telemetry

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestIngestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewIngestMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	ctx := context.Background()
	m.Record(ctx, "games.csv", 16, 14, 2, 0, time.Second)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					got[md.Name] += dp.Value
				}
			}
		}
	}
	if got["gamelib.ingest.rows"] != 16 || got["gamelib.ingest.games"] != 14 || got["gamelib.ingest.skipped"] != 2 {
		t.Fatalf("unexpected counters: %v", got)
	}
}

func TestNilIngestMetricsIsNoop(t *testing.T) {
	var m *IngestMetrics
	m.Record(context.Background(), "x", 1, 1, 0, 0, time.Millisecond)
}

func TestDisabledProviderIsEmpty(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if p.TracerProvider != nil || p.MeterProvider != nil {
		t.Fatalf("disabled provider should not install SDK providers")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
