package executor

import (
	"database/sql"
	"fmt"

	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/queryir"
	"github.com/roach88/dynquery/internal/schema"
	"github.com/roach88/dynquery/internal/store"
)

// scanner turns rows into records. Structured queries select the plan's
// outputs in order. Native queries select whatever their text selects;
// columns are matched to entity fields by column name and unmatched
// columns keep their raw value.
type scanner struct {
	typeName string
	names    []string
	types    []schema.FieldType
}

func newScanner(plan *queryir.Plan, rows *sql.Rows) (*scanner, error) {
	rt := plan.Definition.ReturnType()
	sc := &scanner{}
	if rt.Kind != querydef.ReturnTuple {
		sc.typeName = rt.Name
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	if !plan.Definition.Native() {
		if len(columns) != len(plan.Outputs) {
			return nil, fmt.Errorf("expected %d columns, got %d", len(plan.Outputs), len(columns))
		}
		for _, o := range plan.Outputs {
			sc.names = append(sc.names, o.Name)
			sc.types = append(sc.types, o.Column.Type)
		}
		return sc, nil
	}

	for _, c := range columns {
		if f, ok := plan.Entity.FieldByColumn(c); ok {
			sc.names = append(sc.names, f.Name)
			sc.types = append(sc.types, f.Type)
			continue
		}
		sc.names = append(sc.names, c)
		sc.types = append(sc.types, "")
	}
	return sc, nil
}

func (sc *scanner) scan(rows *sql.Rows) (Record, error) {
	raw := make([]any, len(sc.names))
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return Record{}, fmt.Errorf("scan row: %w", err)
	}

	values := make([]any, len(raw))
	for i, v := range raw {
		decoded, err := store.Decode(sc.types[i], v)
		if err != nil {
			return Record{}, fmt.Errorf("column %s: %w", sc.names[i], err)
		}
		values[i] = decoded
	}
	return Record{Type: sc.typeName, Names: sc.names, Values: values}, nil
}
