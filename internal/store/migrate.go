package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dynquery/internal/querysql"
	"github.com/roach88/dynquery/internal/schema"
)

// columnTypes maps field types to column types per dialect. SQLite needs
// the TIMESTAMP and BOOLEAN declarations so the driver scans time.Time and
// bool back out.
var columnTypes = map[querysql.Dialect]map[schema.FieldType]string{
	querysql.DialectSQLite: {
		schema.TypeString: "TEXT",
		schema.TypeInt:    "INTEGER",
		schema.TypeFloat:  "REAL",
		schema.TypeBool:   "BOOLEAN",
		schema.TypeTime:   "TIMESTAMP",
		schema.TypeUUID:   "TEXT",
	},
	querysql.DialectPostgres: {
		schema.TypeString: "TEXT",
		schema.TypeInt:    "BIGINT",
		schema.TypeFloat:  "DOUBLE PRECISION",
		schema.TypeBool:   "BOOLEAN",
		schema.TypeTime:   "TIMESTAMPTZ",
		schema.TypeUUID:   "UUID",
	},
}

// Migrate creates one table per catalog entity. Existing tables are left
// as they are, so Migrate is idempotent.
//
// Identifiers come from a validated catalog and are written unquoted.
func (s *Store) Migrate(ctx context.Context, cat *schema.Catalog) error {
	names := make([]string, 0, len(cat.Entities))
	for name := range cat.Entities {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		ddl, err := s.createTable(cat.Entities[name])
		if err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

// createTable renders the CREATE TABLE statement for e.
func (s *Store) createTable(e *schema.Entity) (string, error) {
	types := columnTypes[s.dialect]
	cols := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		typ, ok := types[f.Type]
		if !ok {
			return "", fmt.Errorf("field %s: unsupported type %q", f.Name, f.Type)
		}
		col := f.Column + " " + typ
		switch {
		case f.Name == e.Key:
			col += " PRIMARY KEY"
		case !f.Nullable:
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", e.Table, strings.Join(cols, ", ")), nil
}
