package similarity

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/thebtf/snowball/pkg/models"
)

// Metric names a distance/similarity function.
type Metric string

const (
	// MetricL2 is the Euclidean norm of the difference (a dissimilarity).
	MetricL2 Metric = "l2"
	// MetricCosine is the normalized dot product (a similarity).
	MetricCosine Metric = "cosine"
)

// DefaultMetric is used when no distance function is configured.
const DefaultMetric = MetricL2

var supportedMetrics = []Metric{MetricL2, MetricCosine}

// SupportedMetrics returns the supported distance function names.
func SupportedMetrics() []Metric {
	return slices.Clone(supportedMetrics)
}

func (m Metric) String() string {
	return string(m)
}

// Valid reports whether m is one of SupportedMetrics.
func (m Metric) Valid() bool {
	return slices.Contains(supportedMetrics, m)
}

// ParseMetric validates a distance function name.
func ParseMetric(name string) (Metric, error) {
	m := Metric(name)
	if !m.Valid() {
		names := make([]string, len(supportedMetrics))
		for i, sm := range supportedMetrics {
			names[i] = string(sm)
		}
		return "", fmt.Errorf("%w: %q is not one of [%s]", ErrInvalidDistanceFunction, name, strings.Join(names, ", "))
	}
	return m, nil
}

// Func computes a score between two vectors.
type Func func(a, b models.Vector) (float64, error)

// Provider returns the score function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return L2Distance, nil
	case MetricCosine:
		return CosineSimilarity, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDistanceFunction, string(m))
	}
}

// Score computes the metric's raw score between a and b.
func Score(m Metric, a, b models.Vector) (float64, error) {
	fn, err := Provider(m)
	if err != nil {
		return 0, err
	}
	return fn(a, b)
}

// MeetsThreshold reports whether |score(a, b)| >= threshold.
//
// The same >= comparison is applied to both metrics even though L2 is a
// dissimilarity and cosine a similarity. With L2 a pair "meets" the threshold
// when it is at least threshold apart. This is kept for compatibility with
// existing cluster outputs; it is not inverted for L2.
func MeetsThreshold(a, b models.Vector, m Metric, threshold float64) (bool, error) {
	score, err := Score(m, a, b)
	if err != nil {
		return false, err
	}
	return math.Abs(score) >= threshold, nil
}

// Comparison selects how a score is tested against a threshold.
type Comparison int

const (
	// CompareAtLeast applies |score| >= threshold to every metric (MeetsThreshold).
	CompareAtLeast Comparison = iota
	// CompareDirectional applies |score| <= threshold to dissimilarities (L2)
	// and |score| >= threshold to similarities (cosine).
	CompareDirectional
)

func (c Comparison) String() string {
	switch c {
	case CompareAtLeast:
		return "at_least"
	case CompareDirectional:
		return "directional"
	default:
		return fmt.Sprintf("comparison(%d)", int(c))
	}
}

// ParseComparison maps "at_least" / "directional" (or "") to a Comparison.
func ParseComparison(name string) (Comparison, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "at_least":
		return CompareAtLeast, nil
	case "directional":
		return CompareDirectional, nil
	default:
		return CompareAtLeast, fmt.Errorf("unknown comparison %q", name)
	}
}

// IsDissimilarity reports whether larger scores mean farther apart.
func (m Metric) IsDissimilarity() bool {
	return m == MetricL2
}

// Matches tests a pair under the given comparison.
// CompareAtLeast is identical to MeetsThreshold.
func (c Comparison) Matches(a, b models.Vector, m Metric, threshold float64) (bool, error) {
	if c != CompareDirectional || !m.IsDissimilarity() {
		return MeetsThreshold(a, b, m, threshold)
	}
	score, err := Score(m, a, b)
	if err != nil {
		return false, err
	}
	return math.Abs(score) <= threshold, nil
}
