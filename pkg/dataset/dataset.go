// Package dataset normalizes clustering input into a uniform record set.
//
// Input shape is resolved exactly once, by a single type switch, and carried
// forward on the Dataset so later stages never re-inspect the data.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/snowball/pkg/models"
	"github.com/thebtf/snowball/pkg/similarity"
)

// MinRecords is the smallest number of usable records accepted at any ingestion stage.
const MinRecords = 2

// DefaultExtension is used for directory sources when no extension is configured.
const DefaultExtension = "json"

var (
	// ErrInsufficientData is returned when fewer than MinRecords usable records exist.
	ErrInsufficientData = errors.New("dataset doesn't contain enough items")

	// ErrUnsupportedInputShape is returned when data is neither a vector list,
	// a record list nor a resolvable external source.
	ErrUnsupportedInputShape = errors.New("unsupported input shape")

	// ErrMissingVectorField is returned when record-shaped input lacks a vector.
	ErrMissingVectorField = errors.New("record has no vector field")
)

// Item is one decoded entry of an external source.
type Item struct {
	Fields map[string]any
	Origin string
}

// Loader enumerates and decodes the items of an external source.
type Loader interface {
	Load(ctx context.Context) ([]Item, error)
	String() string
}

// Resolver turns a path-like reference into a Loader.
type Resolver func(ref, extension string) (Loader, error)

// Options configures Normalize.
type Options struct {
	// Resolver handles string input. Without one, strings are unsupported.
	Resolver  Resolver
	Logger    *zerolog.Logger
	Extension string
}

// Dataset is a normalized record set plus the shape it was resolved from.
type Dataset struct {
	Source  string
	Records []*models.Record
	Shape   models.Shape
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Normalize classifies data and converts it into records.
func Normalize(ctx context.Context, data any, opts Options) (*Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = &log.Logger
	}

	switch v := data.(type) {
	case [][]float64:
		return fromVectors(len(v), func(i int) any { return v[i] })
	case [][]float32:
		return fromVectors(len(v), func(i int) any { return v[i] })
	case [][]int:
		return fromVectors(len(v), func(i int) any { return v[i] })
	case []models.Vector:
		return fromVectors(len(v), func(i int) any { return v[i] })
	case [][]any:
		return fromVectors(len(v), func(i int) any { return v[i] })
	case []map[string]any:
		return fromMaps(v)
	case []any:
		return fromDecoded(v)
	case []*models.Record:
		return fromRecords(v)
	case []models.Record:
		records := make([]*models.Record, len(v))
		for i := range v {
			records[i] = &v[i]
		}
		return fromRecords(records)
	case *Dataset:
		if v == nil {
			return nil, ErrUnsupportedInputShape
		}
		ds, err := fromRecords(v.Records)
		if err != nil {
			return nil, err
		}
		if v.Shape != models.ShapeUnresolved {
			ds.Shape = v.Shape
		}
		ds.Source = v.Source
		return ds, nil
	case Loader:
		return fromLoader(ctx, v, logger)
	case string:
		if opts.Resolver == nil {
			return nil, fmt.Errorf("%w: no resolver for external source %q", ErrUnsupportedInputShape, v)
		}
		ext := opts.Extension
		if ext == "" {
			ext = DefaultExtension
		}
		loader, err := opts.Resolver(v, ext)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedInputShape, err)
		}
		return fromLoader(ctx, loader, logger)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedInputShape, data)
	}
}

func fromVectors(n int, at func(int) any) (*Dataset, error) {
	if n < MinRecords {
		return nil, fmt.Errorf("%w: got %d vectors", ErrInsufficientData, n)
	}

	records := make([]*models.Record, n)
	for i := 0; i < n; i++ {
		vec, err := similarity.Coerce(at(i))
		if err != nil {
			return nil, fmt.Errorf("%w: vector %d: %w", ErrUnsupportedInputShape, i, err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: vector %d is empty", ErrMissingVectorField, i)
		}
		records[i] = &models.Record{ID: strconv.Itoa(i), Vector: vec}
	}

	return &Dataset{Records: records, Shape: models.ShapeVectorList}, nil
}

// fromDecoded handles untyped JSON/YAML output. The first element decides
// the shape: a map means a record list, anything else a vector list.
func fromDecoded(items []any) (*Dataset, error) {
	if len(items) < MinRecords {
		return nil, fmt.Errorf("%w: got %d items", ErrInsufficientData, len(items))
	}

	if _, ok := items[0].(map[string]any); !ok {
		return fromVectors(len(items), func(i int) any { return items[i] })
	}

	maps := make([]map[string]any, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is %T in a record list", ErrUnsupportedInputShape, i, item)
		}
		maps[i] = m
	}
	return fromMaps(maps)
}

func fromMaps(maps []map[string]any) (*Dataset, error) {
	if len(maps) < MinRecords {
		return nil, fmt.Errorf("%w: got %d records", ErrInsufficientData, len(maps))
	}

	records := make([]*models.Record, len(maps))
	for i, m := range maps {
		rec, err := RecordFromMap(m)
		if err != nil && i == 0 {
			return nil, fmt.Errorf("record %v: %w", m, err)
		}
		rec.Raw = m
		records[i] = rec
	}

	return &Dataset{Records: records, Shape: models.ShapeRecordList}, nil
}

func fromRecords(in []*models.Record) (*Dataset, error) {
	records := make([]*models.Record, 0, len(in))
	for _, rec := range in {
		if rec != nil {
			records = append(records, rec)
		}
	}
	if len(records) < MinRecords {
		return nil, fmt.Errorf("%w: got %d records", ErrInsufficientData, len(records))
	}
	if !records[0].HasVector() {
		return nil, ErrMissingVectorField
	}

	return &Dataset{Records: records, Shape: models.ShapeRecordList}, nil
}

func fromLoader(ctx context.Context, loader Loader, logger *zerolog.Logger) (*Dataset, error) {
	items, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", loader, err)
	}

	records := make([]*models.Record, 0, len(items))
	for _, item := range items {
		rec, err := RecordFromMap(item.Fields)
		if err != nil {
			logger.Warn().Err(err).Str("item", item.Origin).Msg("Skipping item without vector")
			continue
		}
		if rec.ID == "" {
			rec.ID = item.Origin
		}
		records = append(records, rec)
	}

	if len(records) < MinRecords {
		return nil, fmt.Errorf("%w: %d valid records in %s", ErrInsufficientData, len(records), loader)
	}

	logger.Debug().
		Str("source", loader.String()).
		Int("items", len(items)).
		Int("records", len(records)).
		Msg("Loaded external source")

	return &Dataset{Records: records, Shape: models.ShapeExternalSource, Source: loader.String()}, nil
}

// RecordFromMap converts a decoded map into a Record.
// The returned record is always usable as a container for the remaining
// fields; the error reports a missing or non-numeric vector.
func RecordFromMap(m map[string]any) (*models.Record, error) {
	rec := &models.Record{Fields: make(map[string]any, len(m))}
	for k, v := range m {
		switch k {
		case models.FieldID:
			rec.ID = idString(v)
		case models.FieldVector, models.FieldClusterTag:
		default:
			rec.Fields[k] = v
		}
	}

	raw, ok := m[models.FieldVector]
	if !ok || raw == nil {
		return rec, ErrMissingVectorField
	}
	vec, err := similarity.Coerce(raw)
	if err != nil {
		return rec, fmt.Errorf("%w: %w", ErrMissingVectorField, err)
	}
	if len(vec) == 0 {
		return rec, ErrMissingVectorField
	}
	rec.Vector = vec
	return rec, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}
