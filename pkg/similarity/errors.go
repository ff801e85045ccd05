package similarity

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is matched by every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrZeroMagnitude is returned by CosineSimilarity when either vector is all zeros.
	ErrZeroMagnitude = errors.New("cosine similarity with zero-magnitude vector")

	// ErrEmptyVector is returned when both vectors have no components.
	ErrEmptyVector = errors.New("empty vector")

	// ErrInvalidDistanceFunction is returned for metric names outside SupportedMetrics.
	ErrInvalidDistanceFunction = errors.New("invalid distance function")
)

// DimensionMismatchError reports two vectors of unequal length.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrDimensionMismatch) hold.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// CoercionError reports a value that could not be turned into a Vector.
type CoercionError struct {
	Value any
	cause error
}

func (e *CoercionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("unable to convert %v (%T) into a vector: %v", e.Value, e.Value, e.cause)
	}
	return fmt.Sprintf("unable to convert %v (%T) into a vector", e.Value, e.Value)
}

func (e *CoercionError) Unwrap() error { return e.cause }
