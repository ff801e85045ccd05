package snowball

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/snowball/pkg/dataset"
	"github.com/thebtf/snowball/pkg/similarity"
)

// DefaultClusterSize is the minimum member count for a group to be emitted.
const DefaultClusterSize = 3

// Config holds engine configuration. Zero fields fall back to DefaultConfig values,
// except ShowProgress which is honoured as given.
type Config struct {
	Logger *zerolog.Logger
	Meter  metric.Meter // defaults to the global otel meter provider

	DistanceFunction similarity.Metric
	// Comparison defaults to similarity.CompareAtLeast (|score| >= threshold for every metric).
	Comparison similarity.Comparison

	// Extension selects files for directory sources (default "json").
	Extension string
	// SourceTable is the table read by sqlite:// and postgres:// sources (default "records").
	SourceTable string

	ClusterSize     int
	LoadConcurrency int
	ShowProgress    bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		DistanceFunction: similarity.DefaultMetric,
		Comparison:       similarity.CompareAtLeast,
		ClusterSize:      DefaultClusterSize,
		Extension:        dataset.DefaultExtension,
		ShowProgress:     true,
	}
}

// ClusterOptions overrides engine configuration for a single Cluster call.
// Zero values fall back to the engine configuration.
type ClusterOptions struct {
	DistanceFunction similarity.Metric
	ClusterSize      int
}
