package snowball

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/snowball/pkg/similarity"
)

const instrumentationName = "github.com/thebtf/snowball"

type instruments struct {
	committed metric.Int64Counter
	discarded metric.Int64Counter
	visited   metric.Int64Counter
	faults    metric.Int64Counter
	duration  metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	var (
		ins instruments
		err error
	)
	if ins.committed, err = meter.Int64Counter("snowball.clusters.committed",
		metric.WithDescription("Groups that reached the minimum cluster size")); err != nil {
		return nil, err
	}
	if ins.discarded, err = meter.Int64Counter("snowball.clusters.discarded",
		metric.WithDescription("Groups below the minimum cluster size")); err != nil {
		return nil, err
	}
	if ins.visited, err = meter.Int64Counter("snowball.candidates.visited",
		metric.WithDescription("Candidate records compared against a seed")); err != nil {
		return nil, err
	}
	if ins.faults, err = meter.Int64Counter("snowball.pair.faults",
		metric.WithDescription("Pairwise comparisons that failed")); err != nil {
		return nil, err
	}
	if ins.duration, err = meter.Float64Histogram("snowball.cluster.duration",
		metric.WithDescription("Duration of a clustering pass"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &ins, nil
}

func (ins *instruments) record(ctx context.Context, m similarity.Metric, st passStats, elapsed time.Duration) {
	if ins == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("distance_function", m.String()))
	ins.committed.Add(ctx, int64(st.committed), attrs)
	ins.discarded.Add(ctx, int64(st.discarded), attrs)
	ins.visited.Add(ctx, int64(st.visited), attrs)
	ins.faults.Add(ctx, int64(st.faults), attrs)
	ins.duration.Record(ctx, elapsed.Seconds(), attrs)
}
