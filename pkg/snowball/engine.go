// Package snowball implements greedy, threshold-driven clustering of vectors.
//
// Each record not yet absorbed into a cluster is used, in dataset order, as a
// seed. Every later record that is still unabsorbed is compared against the
// seed; records meeting the threshold join the seed's group. A group becomes a
// cluster only if it has at least ClusterSize members, in which case its
// matched records are excluded from further consideration. Smaller groups are
// discarded and their records stay available to later seeds.
package snowball

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/snowball/internal/source"
	"github.com/thebtf/snowball/pkg/dataset"
	"github.com/thebtf/snowball/pkg/models"
	"github.com/thebtf/snowball/pkg/similarity"
)

// State tracks where the engine's dataset is in a clustering call.
type State int

const (
	StateUnprocessed State = iota
	StateTagged
	StatePartitioned
)

func (s State) String() string {
	switch s {
	case StateUnprocessed:
		return "unprocessed"
	case StateTagged:
		return "tagged"
	case StatePartitioned:
		return "partitioned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Engine clusters one normalized dataset.
// Cluster calls are serialized; an Engine is meant to process one dataset at a time.
type Engine struct {
	logger  zerolog.Logger
	metrics *instruments
	records []*models.Record
	source  string
	cfg     Config
	shape   models.Shape
	state   State
	mu      sync.Mutex
}

// New validates cfg, normalizes data and returns a ready engine.
//
// data may be raw vectors ([][]float64, [][]float32, [][]int, []models.Vector,
// [][]any), records ([]map[string]any, []*models.Record, []models.Record,
// *dataset.Dataset), a dataset.Loader, or a string naming an external source
// (directory, path prefix, sqlite:// or postgres:// reference).
func New(ctx context.Context, data any, cfg Config) (*Engine, error) {
	defaults := DefaultConfig()
	if cfg.DistanceFunction == "" {
		cfg.DistanceFunction = defaults.DistanceFunction
	}
	if cfg.ClusterSize <= 0 {
		cfg.ClusterSize = defaults.ClusterSize
	}
	if cfg.Extension == "" {
		cfg.Extension = defaults.Extension
	}

	metric, err := similarity.ParseMetric(string(cfg.DistanceFunction))
	if err != nil {
		return nil, err
	}
	cfg.DistanceFunction = metric

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("component", "snowball").Logger()

	ins, err := newInstruments(cfg.Meter)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	ds, err := dataset.Normalize(ctx, data, dataset.Options{
		Extension: cfg.Extension,
		Logger:    &logger,
		Resolver: source.Resolver(source.Options{
			Logger:      &logger,
			Table:       cfg.SourceTable,
			Concurrency: cfg.LoadConcurrency,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("normalize data: %w", err)
	}

	logger.Debug().
		Str("shape", ds.Shape.String()).
		Int("records", ds.Len()).
		Str("distance_function", metric.String()).
		Int("cluster_size", cfg.ClusterSize).
		Msg("Engine ready")

	return &Engine{
		logger:  logger,
		metrics: ins,
		records: ds.Records,
		source:  ds.Source,
		cfg:     cfg,
		shape:   ds.Shape,
	}, nil
}

// Shape returns the input shape resolved at construction.
func (e *Engine) Shape() models.Shape {
	return e.shape
}

// State returns the state reached by the last Cluster call.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Records returns the engine's working dataset. For vector-list input this
// is replaced by freshly wrapped records on every Cluster call.
func (e *Engine) Records() []*models.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*models.Record, len(e.records))
	copy(out, e.records)
	return out
}

// Cluster runs one greedy pass over the dataset and returns the committed clusters.
// Zero-valued opts fields fall back to the engine configuration.
func (e *Engine) Cluster(threshold float64, opts ClusterOptions) (models.Clusters, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = StateUnprocessed
	if err := e.tag(); err != nil {
		return nil, err
	}
	e.state = StateTagged

	metricName := opts.DistanceFunction
	if metricName == "" {
		metricName = e.cfg.DistanceFunction
	}
	metric, err := similarity.ParseMetric(string(metricName))
	if err != nil {
		return nil, err
	}

	clusterSize := opts.ClusterSize
	if clusterSize <= 0 {
		clusterSize = e.cfg.ClusterSize
	}

	start := time.Now()
	clusters, stats := e.partition(metric, clusterSize, threshold)
	elapsed := time.Since(start)
	e.state = StatePartitioned

	e.metrics.record(context.Background(), metric, stats, elapsed)
	e.logger.Debug().
		Str("distance_function", metric.String()).
		Float64("threshold", threshold).
		Int("cluster_size", clusterSize).
		Int("clusters", stats.committed).
		Int("discarded", stats.discarded).
		Int("visited", stats.visited).
		Int("faults", stats.faults).
		Dur("elapsed", elapsed).
		Msg("Clustering complete")

	return clusters, nil
}

// tag assigns a fresh ClusterTag to every record. Record-shaped datasets are
// tagged in place, including the caller's maps for []map input; vector lists
// are replaced by new wrapper records.
func (e *Engine) tag() error {
	switch {
	case e.shape == models.ShapeVectorList:
		wrapped := make([]*models.Record, len(e.records))
		for i, rec := range e.records {
			wrapped[i] = &models.Record{
				ID:         rec.ID,
				Vector:     rec.Vector,
				ClusterTag: uuid.NewString(),
			}
		}
		e.records = wrapped
		return nil
	case e.shape.IsRecordShaped():
		for _, rec := range e.records {
			rec.SetClusterTag(uuid.NewString())
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnresolvedDataShape, e.shape)
	}
}

type passStats struct {
	committed int
	discarded int
	visited   int
	faults    int
}

// partition is the greedy pass. absorbed marks records taken by a committed
// cluster; the seed loop is bounded by the dataset length at entry.
func (e *Engine) partition(metric similarity.Metric, clusterSize int, threshold float64) (models.Clusters, passStats) {
	records := e.records
	clusters := make(models.Clusters)
	absorbed := make([]bool, len(records))
	prog := newProgress(&e.logger, len(records), e.cfg.ShowProgress)

	var stats passStats
	for i, seed := range records {
		if absorbed[i] {
			prog.seed(i, len(clusters))
			continue
		}

		members := []*models.Record{seed}
		var matched []int

	scan:
		for j := i + 1; j < len(records); j++ {
			if absorbed[j] {
				continue
			}
			stats.visited++

			ok, err := e.cfg.Comparison.Matches(seed.Vector, records[j].Vector, metric, threshold)
			switch {
			case errors.Is(err, similarity.ErrZeroMagnitude):
				// Undefined cosine: maximally dissimilar, keep scanning.
				stats.faults++
				continue
			case err != nil:
				stats.faults++
				e.logger.Debug().Err(err).
					Str("seed", seed.ID).
					Str("candidate", records[j].ID).
					Msg("Stopping scan for seed")
				break scan
			case ok:
				members = append(members, records[j])
				matched = append(matched, j)
			}
		}

		if len(members) >= clusterSize {
			clusters[len(clusters)] = members
			for _, j := range matched {
				absorbed[j] = true
			}
			stats.committed++
		} else {
			stats.discarded++
		}
		prog.seed(i, len(clusters))
	}

	return clusters, stats
}
