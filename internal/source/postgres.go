package source

import (
	"context"
	"fmt"
	"strings"

	pgvec "github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thebtf/snowball/internal/privacy"
	"github.com/thebtf/snowball/pkg/dataset"
	"github.com/thebtf/snowball/pkg/models"
)

// PostgresConfig configures a Postgres source.
type PostgresConfig struct {
	DSN          string
	Table        string
	IDColumn     string
	VectorColumn string // pgvector "vector" column
	LogLevel     logger.LogLevel
}

// Postgres loads (id, vector) pairs from a table with a pgvector column.
type Postgres struct {
	dsn          string
	table        string
	idColumn     string
	vectorColumn string
	logLevel     logger.LogLevel
}

// pgRow receives one selected row; columns are aliased onto these names.
type pgRow struct {
	ID     string        `gorm:"column:id"`
	Vector *pgvec.Vector `gorm:"column:vector"` // nil for NULL
}

// NewPostgres creates a Postgres source. The connection is opened on Load.
func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	p := &Postgres{
		dsn:          cfg.DSN,
		table:        cfg.Table,
		idColumn:     cfg.IDColumn,
		vectorColumn: cfg.VectorColumn,
		logLevel:     cfg.LogLevel,
	}
	if p.table == "" {
		p.table = DefaultTable
	}
	if p.idColumn == "" {
		p.idColumn = DefaultIDColumn
	}
	if p.vectorColumn == "" {
		p.vectorColumn = DefaultVectorColumn
	}
	if p.logLevel == 0 {
		p.logLevel = logger.Silent
	}
	for kind, name := range map[string]string{"table": p.table, "id column": p.idColumn, "vector column": p.vectorColumn} {
		if err := validIdent(kind, name); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Postgres) String() string {
	dsn := privacy.RedactReference(p.dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "table=" + p.table
}

// Load selects every row of the table ordered by the id column.
func (p *Postgres) Load(ctx context.Context) ([]dataset.Item, error) {
	db, err := gorm.Open(postgres.Open(p.dsn), &gorm.Config{
		Logger: logger.Default.LogMode(p.logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	defer func() {
		_ = sqlDB.Close()
	}()

	var rows []pgRow
	err = db.WithContext(ctx).
		Table(p.table).
		Select(fmt.Sprintf("%s::text AS id, %s AS vector", p.idColumn, p.vectorColumn)).
		Order(p.idColumn).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	items := make([]dataset.Item, len(rows))
	for i, row := range rows {
		fields := map[string]any{models.FieldID: row.ID}
		if row.Vector != nil && len(row.Vector.Slice()) > 0 {
			fields[models.FieldVector] = *row.Vector
		}
		items[i] = dataset.Item{Origin: row.ID, Fields: fields}
	}
	return items, nil
}
