package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/dynquery/internal/schema"
)

// Dump returns every row of e ordered by key, keyed by property name.
// Values are decoded to their field types.
//
// Returns an empty slice (not nil) if the table has no rows.
func (s *Store) Dump(ctx context.Context, e *schema.Entity) ([]map[string]any, error) {
	query, args, err := sq.Select(Columns(e)...).
		From(e.Table).
		OrderBy(e.Key).
		PlaceholderFormat(s.dialect.Format()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", e.Name, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", e.Name, err)
	}
	defer rows.Close()

	out := []map[string]any{}
	for rows.Next() {
		raw := make([]any, len(e.Fields))
		dest := make([]any, len(e.Fields))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("dump %s: scan: %w", e.Name, err)
		}

		row := make(map[string]any, len(e.Fields))
		for i, f := range e.Fields {
			v, err := Decode(f.Type, raw[i])
			if err != nil {
				return nil, fmt.Errorf("dump %s: %w", e.Name, err)
			}
			row[f.Name] = v
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dump %s: iterate: %w", e.Name, err)
	}
	return out, nil
}
