package similarity

import (
	"fmt"

	"github.com/thebtf/snowball/pkg/models"
)

// floater matches json.Number from both encoding/json and goccy/go-json.
type floater interface {
	Float64() (float64, error)
}

// float32Slicer matches pgvector.Vector and similar float32-backed types.
type float32Slicer interface {
	Slice() []float32
}

// Coerce converts list-like input into a Vector.
// Supported inputs are numeric slices, []any holding numbers (as produced by
// JSON or YAML decoding) and float32-backed vector types exposing Slice().
// Anything else returns a *CoercionError.
func Coerce(v any) (models.Vector, error) {
	switch val := v.(type) {
	case models.Vector:
		return val, nil
	case []float64:
		return models.Vector(val), nil
	case []float32:
		return fromFloat32(val), nil
	case []int:
		out := make(models.Vector, len(val))
		for i, x := range val {
			out[i] = float64(x)
		}
		return out, nil
	case []int64:
		out := make(models.Vector, len(val))
		for i, x := range val {
			out[i] = float64(x)
		}
		return out, nil
	case []any:
		out := make(models.Vector, len(val))
		for i, x := range val {
			f, err := toFloat(x)
			if err != nil {
				return nil, &CoercionError{Value: v, cause: fmt.Errorf("element %d: %w", i, err)}
			}
			out[i] = f
		}
		return out, nil
	case float32Slicer:
		return fromFloat32(val.Slice()), nil
	default:
		return nil, &CoercionError{Value: v}
	}
}

func fromFloat32(val []float32) models.Vector {
	out := make(models.Vector, len(val))
	for i, x := range val {
		out[i] = float64(x)
	}
	return out
}

func toFloat(x any) (float64, error) {
	switch n := x.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case floater:
		return n.Float64()
	default:
		return 0, fmt.Errorf("non-numeric value %v (%T)", x, x)
	}
}
