package hash

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "exthash/pkg/hash"

// indexMetrics counts structural events of one index.
type indexMetrics struct {
	adds    metric.Int64Counter
	deletes metric.Int64Counter
	splits  metric.Int64Counter
	resizes metric.Int64Counter
}

func newIndexMetrics(meter metric.Meter) (*indexMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	var (
		m   indexMetrics
		err error
	)
	if m.adds, err = meter.Int64Counter("exthash.adds",
		metric.WithDescription("Records inserted under a new key")); err != nil {
		return nil, err
	}
	if m.deletes, err = meter.Int64Counter("exthash.deletes",
		metric.WithDescription("Records removed")); err != nil {
		return nil, err
	}
	if m.splits, err = meter.Int64Counter("exthash.bucket_splits",
		metric.WithDescription("Bucket splits")); err != nil {
		return nil, err
	}
	if m.resizes, err = meter.Int64Counter("exthash.directory_resizes",
		metric.WithDescription("Directory doublings")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *indexMetrics) inc(c metric.Int64Counter) {
	c.Add(context.Background(), 1)
}
