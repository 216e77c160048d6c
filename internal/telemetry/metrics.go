package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const ScopeName = "github.com/cuihairu/gamelib"

var (
	SourceKey    = attribute.Key("ingest.source")
	OperationKey = attribute.Key("catalog.operation")
)

// IngestMetrics records dataset ingestion outcomes. A nil *IngestMetrics
// records nothing.
type IngestMetrics struct {
	rows     metric.Int64Counter
	games    metric.Int64Counter
	skipped  metric.Int64Counter
	failed   metric.Int64Counter
	duration metric.Float64Histogram
}

func NewIngestMetrics(meter metric.Meter) (*IngestMetrics, error) {
	if meter == nil {
		meter = otel.Meter(ScopeName)
	}
	m := &IngestMetrics{}
	var err error
	if m.rows, err = meter.Int64Counter("gamelib.ingest.rows", metric.WithDescription("Dataset rows read")); err != nil {
		return nil, err
	}
	if m.games, err = meter.Int64Counter("gamelib.ingest.games", metric.WithDescription("Games stored")); err != nil {
		return nil, err
	}
	if m.skipped, err = meter.Int64Counter("gamelib.ingest.skipped", metric.WithDescription("Rows skipped as malformed")); err != nil {
		return nil, err
	}
	if m.failed, err = meter.Int64Counter("gamelib.ingest.failed", metric.WithDescription("Rows the repository refused")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("gamelib.ingest.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *IngestMetrics) Record(ctx context.Context, source string, rows, games, skipped, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(SourceKey.String(source))
	m.rows.Add(ctx, int64(rows), opt)
	m.games.Add(ctx, int64(games), opt)
	m.skipped.Add(ctx, int64(skipped), opt)
	m.failed.Add(ctx, int64(failed), opt)
	m.duration.Record(ctx, elapsed.Seconds(), opt)
}
