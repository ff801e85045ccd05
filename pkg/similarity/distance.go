// Package similarity provides the vector math used for clustering:
// L2 distance, cosine similarity and the threshold test built on them.
package similarity

import (
	"math"

	"github.com/thebtf/snowball/pkg/models"
)

func checkDims(a, b models.Vector) error {
	if len(a) != len(b) {
		return &DimensionMismatchError{Expected: len(a), Actual: len(b)}
	}
	if len(a) == 0 {
		return ErrEmptyVector
	}
	return nil
}

// L2Distance returns the Euclidean norm of a-b.
// Larger values mean the vectors are farther apart.
func L2Distance(a, b models.Vector) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// CosineSimilarity returns dot(a,b) / (|a| * |b|), a value in [-1, 1].
// It returns ErrZeroMagnitude instead of NaN when either vector is all zeros.
func CosineSimilarity(a, b models.Vector) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroMagnitude
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
