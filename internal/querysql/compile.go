// Package querysql renders bound queries to parameterized SQL.
//
// Structured queries are built with squirrel from a queryir.Select. Native
// queries keep their text; only placeholders are rewritten. Values are
// never interpolated into SQL text.
package querysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/dynquery/internal/queryir"
)

// Dialect selects placeholder syntax.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}

// placeholder returns the n-th (1-based) placeholder.
func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Format returns the squirrel placeholder format of the dialect.
func (d Dialect) Format() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// Compiler renders queryir.Select values to SQL for one dialect.
type Compiler struct {
	dialect Dialect
	builder sq.StatementBuilderType
}

// NewCompiler creates a compiler for the given dialect.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{
		dialect: d,
		builder: sq.StatementBuilder.PlaceholderFormat(d.Format()),
	}
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() Dialect { return c.dialect }

// Find renders the row query: selected columns, filter, order and limit.
func (c *Compiler) Find(sel *queryir.Select) (string, []any, error) {
	b, err := c.rows(sel)
	if err != nil {
		return "", nil, err
	}
	if sel.Limited {
		b = b.Limit(uint64(sel.Limit))
	}
	return b.ToSql()
}

// Page renders one window of the row query. The caller clamps the window
// to the definition's limit.
func (c *Compiler) Page(sel *queryir.Select, offset, size int) (string, []any, error) {
	b, err := c.rows(sel)
	if err != nil {
		return "", nil, err
	}
	return b.Limit(uint64(size)).Offset(uint64(offset)).ToSql()
}

// Count renders a row count that matches the number of rows Find
// returns. Distinct entity selects count distinct keys; other distinct
// selects count the distinct output rows. With a limit the count is taken
// over the limited rows.
func (c *Compiler) Count(sel *queryir.Select) (string, []any, error) {
	if !sel.Limited && (!sel.Distinct || selectsKey(sel)) {
		column := "COUNT(*)"
		if sel.Distinct {
			column = "COUNT(DISTINCT " + sel.Key.Ref() + ")"
		}
		b, err := c.from(c.builder.Select(column), sel)
		if err != nil {
			return "", nil, err
		}
		return b.ToSql()
	}

	inner, err := c.from(sq.Select(c.countColumns(sel)...), sel)
	if err != nil {
		return "", nil, err
	}
	if sel.Distinct {
		inner = inner.Distinct()
	}
	if sel.Limited {
		inner = inner.Limit(uint64(sel.Limit))
	}
	return c.builder.Select("COUNT(*)").FromSelect(inner, "q").ToSql()
}

// Exists renders a count capped at one row.
func (c *Compiler) Exists(sel *queryir.Select) (string, []any, error) {
	limit := 1
	if sel.Limited && sel.Limit < limit {
		limit = sel.Limit
	}
	inner, err := c.from(sq.Select(c.countColumns(sel)...), sel)
	if err != nil {
		return "", nil, err
	}
	inner = inner.Limit(uint64(limit))
	return c.builder.Select("COUNT(*)").FromSelect(inner, "q").ToSql()
}

// countColumns returns the columns selected by count and exists
// subqueries: the key for distinct entity rows, every output for other
// distinct rows.
func (c *Compiler) countColumns(sel *queryir.Select) []string {
	switch {
	case !sel.Distinct:
		return []string{"1"}
	case selectsKey(sel):
		return []string{sel.Key.Ref()}
	default:
		columns := make([]string, len(sel.Outputs))
		for i, o := range sel.Outputs {
			columns[i] = o.Column.Ref()
		}
		return columns
	}
}

// selectsKey reports whether the root key is among the outputs. Distinct
// rows then coincide with distinct keys.
func selectsKey(sel *queryir.Select) bool {
	for _, o := range sel.Outputs {
		if o.Column.Ref() == sel.Key.Ref() {
			return true
		}
	}
	return false
}

// rows builds the select list with filter and order.
func (c *Compiler) rows(sel *queryir.Select) (sq.SelectBuilder, error) {
	columns := make([]string, len(sel.Outputs))
	for i, o := range sel.Outputs {
		columns[i] = o.Column.Ref()
	}
	b, err := c.from(c.builder.Select(columns...), sel)
	if err != nil {
		return b, err
	}
	if sel.Distinct {
		b = b.Distinct()
	}
	for _, o := range sel.Orders {
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		b = b.OrderBy(o.Column.Ref() + " " + dir)
	}
	return b, nil
}

// from adds the table, joins and filter.
func (c *Compiler) from(b sq.SelectBuilder, sel *queryir.Select) (sq.SelectBuilder, error) {
	b = b.From(sel.Table + " " + sel.Alias)
	for _, j := range sel.Joins {
		b = b.JoinClause(fmt.Sprintf("%s JOIN %s %s ON %s = %s",
			j.Kind, j.Table, j.Alias, j.Left.Ref(), j.Right.Ref()))
	}

	if sel.Filter == nil {
		return b, nil
	}
	// Top-level conjuncts become separate WHERE parts so the outer
	// parentheses are dropped.
	parts := []queryir.Predicate{sel.Filter}
	if and, ok := sel.Filter.(queryir.And); ok {
		parts = and.Predicates
	}
	for _, p := range parts {
		s, err := c.predicate(p)
		if err != nil {
			return b, err
		}
		b = b.Where(s)
	}
	return b, nil
}

// predicate converts a bound predicate to a squirrel expression.
func (c *Compiler) predicate(p queryir.Predicate) (sq.Sqlizer, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		key := operand(pred.Left)
		switch pred.Op {
		case queryir.CmpEqual:
			return sq.Eq{key: pred.Value}, nil
		case queryir.CmpNotEqual:
			return sq.NotEq{key: pred.Value}, nil
		case queryir.CmpGreaterThan:
			return sq.Gt{key: pred.Value}, nil
		case queryir.CmpGreaterThanOrEqual:
			return sq.GtOrEq{key: pred.Value}, nil
		case queryir.CmpLessThan:
			return sq.Lt{key: pred.Value}, nil
		case queryir.CmpLessThanOrEqual:
			return sq.LtOrEq{key: pred.Value}, nil
		default:
			return nil, fmt.Errorf("unsupported comparison: %s", pred.Op)
		}
	case queryir.Like:
		if pred.Negated {
			return sq.NotLike{operand(pred.Left): pred.Pattern}, nil
		}
		return sq.Like{operand(pred.Left): pred.Pattern}, nil
	case queryir.In:
		if pred.Negated {
			return sq.NotEq{operand(pred.Left): pred.Values}, nil
		}
		return sq.Eq{operand(pred.Left): pred.Values}, nil
	case queryir.Null:
		if pred.Negated {
			return sq.NotEq{operand(pred.Left): nil}, nil
		}
		return sq.Eq{operand(pred.Left): nil}, nil
	case queryir.And:
		return c.conjunction(pred.Predicates, func(s []sq.Sqlizer) sq.Sqlizer { return sq.And(s) })
	case queryir.Or:
		return c.conjunction(pred.Predicates, func(s []sq.Sqlizer) sq.Sqlizer { return sq.Or(s) })
	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) conjunction(preds []queryir.Predicate, wrap func([]sq.Sqlizer) sq.Sqlizer) (sq.Sqlizer, error) {
	parts := make([]sq.Sqlizer, len(preds))
	for i, p := range preds {
		s, err := c.predicate(p)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return wrap(parts), nil
}

// operand renders the left-hand side of a predicate.
func operand(o queryir.Operand) string {
	expr := o.Column.Ref()
	if o.Text {
		expr = "CAST(" + expr + " AS TEXT)"
	}
	if o.Case != "" {
		expr = string(o.Case) + "(" + expr + ")"
	}
	return expr
}
