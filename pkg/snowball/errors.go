package snowball

import (
	"errors"

	"github.com/thebtf/snowball/pkg/dataset"
	"github.com/thebtf/snowball/pkg/similarity"
)

// Errors returned by New and Cluster. All of them match with errors.Is.
var (
	ErrInsufficientData        = dataset.ErrInsufficientData
	ErrUnsupportedInputShape   = dataset.ErrUnsupportedInputShape
	ErrMissingVectorField      = dataset.ErrMissingVectorField
	ErrInvalidDistanceFunction = similarity.ErrInvalidDistanceFunction
	ErrDimensionMismatch       = similarity.ErrDimensionMismatch

	// ErrUnresolvedDataShape is returned when Cluster runs on an engine whose
	// data was never normalized (for example a zero Engine).
	ErrUnresolvedDataShape = errors.New("data shape was never resolved")
)
