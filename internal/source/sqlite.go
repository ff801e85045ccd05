package source

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/thebtf/snowball/pkg/dataset"
	"github.com/thebtf/snowball/pkg/models"
)

// SQLiteConfig configures a SQLite source.
type SQLiteConfig struct {
	Path  string
	Table string
	// VectorColumn holds either a JSON array (TEXT) or a little-endian float32 BLOB.
	VectorColumn string
}

// SQLite loads every row of a table; each row becomes one record.
type SQLite struct {
	path         string
	table        string
	vectorColumn string
}

// NewSQLite creates a SQLite source. The database is opened on Load.
func NewSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	vecCol := cfg.VectorColumn
	if vecCol == "" {
		vecCol = DefaultVectorColumn
	}
	if err := validIdent("table", table); err != nil {
		return nil, err
	}
	if err := validIdent("column", vecCol); err != nil {
		return nil, err
	}
	return &SQLite{path: cfg.Path, table: table, vectorColumn: vecCol}, nil
}

func (s *SQLite) String() string {
	return "sqlite://" + s.path + "?table=" + s.table
}

// Load reads all rows ordered by rowid.
func (s *SQLite) Load(ctx context.Context) ([]dataset.Item, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	return loadRows(ctx, db, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", s.table), s.vectorColumn)
}

func loadRows(ctx context.Context, db *sql.DB, query, vectorColumn string) ([]dataset.Item, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var items []dataset.Item
	n := 0
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		fields := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if strings.EqualFold(col, vectorColumn) {
				col = models.FieldVector
				v = decodeVectorColumn(v)
			} else if b, ok := v.([]byte); ok {
				v = string(b)
			}
			fields[col] = v
		}

		items = append(items, dataset.Item{Origin: fmt.Sprintf("row %d", n), Fields: fields})
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return items, nil
}

// decodeVectorColumn returns a value similarity.Coerce understands, or nil
// when the column holds nothing usable (the row is then skipped).
func decodeVectorColumn(v any) any {
	switch val := v.(type) {
	case string:
		return decodeJSONVector([]byte(val))
	case []byte:
		trimmed := strings.TrimSpace(string(val))
		if strings.HasPrefix(trimmed, "[") {
			return decodeJSONVector([]byte(trimmed))
		}
		vec, err := DecodeFloat32Blob(val)
		if err != nil {
			return nil
		}
		return vec
	default:
		return nil
	}
}

func decodeJSONVector(data []byte) any {
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil
	}
	return vec
}

// DecodeFloat32Blob decodes a little-endian float32 sequence without a length prefix.
func DecodeFloat32Blob(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
