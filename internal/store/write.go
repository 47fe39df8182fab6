package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/dynquery/internal/schema"
)

// Insert writes one row of e. Row keys are property names; properties
// missing from row are written as NULL.
//
// A uuid primary key that is absent comes from the store's KeyGenerator,
// UUIDv7 unless replaced. The key actually written is returned.
func (s *Store) Insert(ctx context.Context, e *schema.Entity, row map[string]any) (any, error) {
	for name := range row {
		if _, ok := e.Field(name); !ok {
			return nil, fmt.Errorf("insert %s: unknown property %q", e.Name, name)
		}
	}

	key, err := s.key(e, row)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", e.Name, err)
	}

	cols := make([]string, 0, len(e.Fields))
	vals := make([]any, 0, len(e.Fields))
	for _, f := range e.Fields {
		raw := row[f.Name]
		if f.Name == e.Key {
			raw = key
		}
		v, err := Encode(f, raw)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", e.Name, err)
		}
		cols = append(cols, f.Column)
		vals = append(vals, v)
	}

	query, args, err := sq.Insert(e.Table).
		Columns(cols...).
		Values(vals...).
		PlaceholderFormat(s.dialect.Format()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", e.Name, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert %s: %w", e.Name, err)
	}
	return key, nil
}

// InsertAll writes rows in order and stops at the first failure.
func (s *Store) InsertAll(ctx context.Context, e *schema.Entity, rows []map[string]any) error {
	for i, row := range rows {
		if _, err := s.Insert(ctx, e, row); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// key returns the primary key for row, generating one for uuid keys.
func (s *Store) key(e *schema.Entity, row map[string]any) (any, error) {
	kf, ok := e.KeyField()
	if !ok {
		return nil, fmt.Errorf("entity has no key field %q", e.Key)
	}
	if v, ok := row[kf.Name]; ok && v != nil {
		return v, nil
	}
	if kf.Type != schema.TypeUUID {
		return nil, fmt.Errorf("missing key %q", kf.Name)
	}
	id, err := s.keys.NewKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return id, nil
}

// Columns returns the column names of e in declaration order.
func Columns(e *schema.Entity) []string {
	cols := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		cols[i] = f.Column
	}
	return cols
}
