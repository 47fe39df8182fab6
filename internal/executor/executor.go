package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/dynquery/internal/binding"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/queryir"
	"github.com/roach88/dynquery/internal/querysql"
	"github.com/roach88/dynquery/internal/schema"
	"github.com/roach88/dynquery/internal/store"
)

// Executor runs plans. It holds no per-call state and is safe for
// concurrent use when its provider is.
type Executor struct {
	provider store.Provider
	compiler *querysql.Compiler
}

// New creates an executor that renders SQL in dialect and runs it on
// connections from p.
func New(p store.Provider, dialect querysql.Dialect) *Executor {
	return &Executor{provider: p, compiler: querysql.NewCompiler(dialect)}
}

// Compiler returns the SQL compiler the executor renders with.
func (e *Executor) Compiler() *querysql.Compiler {
	return e.compiler
}

// Execute runs plan according to its definition's action.
func (e *Executor) Execute(ctx context.Context, plan *queryir.Plan, args binding.Arguments) (*Outcome, error) {
	action := plan.Definition.Action()
	out := &Outcome{Action: action}
	var err error
	switch action {
	case querydef.ActionCount:
		out.Count, err = e.Count(ctx, plan, args)
	case querydef.ActionExists:
		out.Exists, err = e.Exists(ctx, plan, args)
	default:
		out.Records, err = e.Find(ctx, plan, args)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Find returns every row of plan, up to its limit.
func (e *Executor) Find(ctx context.Context, plan *queryir.Plan, args binding.Arguments) ([]Record, error) {
	def := plan.Definition
	var query string
	var values []any
	var err error
	if def.Native() {
		query, values, err = e.compiler.NativeFind(def, args)
	} else {
		var sel *queryir.Select
		if sel, err = queryir.Bind(plan, args); err == nil {
			query, values, err = e.compiler.Find(sel)
		}
	}
	if err != nil {
		return nil, err
	}
	return e.records(ctx, plan, query, values)
}

// FindPage returns one page of plan's rows. With a definition limit the
// pages cover only the first limit rows and Total never exceeds it.
func (e *Executor) FindPage(ctx context.Context, plan *queryir.Plan, args binding.Arguments, p Pagination) (*Page, error) {
	if err := p.Validate(); err != nil {
		return nil, querydef.NewExecutionBindingError(plan.Definition.Method(), err.Error())
	}

	total, err := e.Count(ctx, plan, args)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: []Record{}, Page: p.Page, Size: p.Size, Total: total}
	offset, size := window(plan.Definition, p)
	if size == 0 {
		return page, nil
	}

	def := plan.Definition
	var query string
	var values []any
	if def.Native() {
		query, values, err = e.compiler.NativePage(def, args, offset, size)
	} else {
		var sel *queryir.Select
		if sel, err = queryir.Bind(plan, args); err == nil {
			query, values, err = e.compiler.Page(sel, offset, size)
		}
	}
	if err != nil {
		return nil, err
	}

	items, err := e.records(ctx, plan, query, values)
	if err != nil {
		return nil, err
	}
	page.Items = items
	return page, nil
}

// window clamps a page to the definition's limit.
func window(def *querydef.Definition, p Pagination) (offset, size int) {
	offset, size = p.Offset(), p.Size
	limit, ok := def.Limit()
	if !ok {
		return offset, size
	}
	if offset >= limit {
		return offset, 0
	}
	return offset, min(size, limit-offset)
}

// Count returns the number of rows plan selects, capped at its limit.
func (e *Executor) Count(ctx context.Context, plan *queryir.Plan, args binding.Arguments) (int64, error) {
	def := plan.Definition
	var query string
	var values []any
	var err error
	if def.Native() {
		query, values, err = e.compiler.NativeCount(def, args)
	} else {
		var sel *queryir.Select
		if sel, err = queryir.Bind(plan, args); err == nil {
			query, values, err = e.compiler.Count(sel)
		}
	}
	if err != nil {
		return 0, err
	}
	return e.scalar(ctx, def, query, values)
}

// Exists reports whether plan selects at least one row.
func (e *Executor) Exists(ctx context.Context, plan *queryir.Plan, args binding.Arguments) (bool, error) {
	def := plan.Definition
	var query string
	var values []any
	var err error
	if def.Native() {
		query, values, err = e.compiler.NativeExists(def, args)
	} else {
		var sel *queryir.Select
		if sel, err = queryir.Bind(plan, args); err == nil {
			query, values, err = e.compiler.Exists(sel)
		}
	}
	if err != nil {
		return false, err
	}
	n, err := e.scalar(ctx, def, query, values)
	return n > 0, err
}

// scalar runs a single-value count query.
func (e *Executor) scalar(ctx context.Context, def *querydef.Definition, query string, values []any) (n int64, err error) {
	conn, err := e.acquire(ctx, def)
	if err != nil {
		return 0, err
	}
	defer e.release(conn, &err)

	slog.Debug("executing query", "method", def.Method().String(), "sql", query, "args", len(values))

	var raw any
	if err := conn.QueryRowContext(ctx, query, values...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, querydef.NewBackendError(def.Method(), query, err)
	}
	if raw == nil {
		return 0, nil
	}
	v, err := store.Decode(schema.TypeInt, raw)
	if err != nil {
		return 0, querydef.NewBackendError(def.Method(), query, fmt.Errorf("count result: %w", err))
	}
	return v.(int64), nil
}

// records runs a row query and scans every row.
func (e *Executor) records(ctx context.Context, plan *queryir.Plan, query string, values []any) (out []Record, err error) {
	def := plan.Definition
	conn, err := e.acquire(ctx, def)
	if err != nil {
		return nil, err
	}
	defer e.release(conn, &err)

	slog.Debug("executing query", "method", def.Method().String(), "sql", query, "args", len(values))

	rows, err := conn.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, querydef.NewBackendError(def.Method(), query, err)
	}
	defer rows.Close()

	sc, err := newScanner(plan, rows)
	if err != nil {
		return nil, querydef.NewBackendError(def.Method(), query, err)
	}

	out = []Record{}
	for rows.Next() {
		rec, err := sc.scan(rows)
		if err != nil {
			return nil, querydef.NewBackendError(def.Method(), query, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, querydef.NewBackendError(def.Method(), query, err)
	}
	return out, nil
}

func (e *Executor) acquire(ctx context.Context, def *querydef.Definition) (store.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	conn, err := e.provider.Acquire(ctx)
	if err != nil {
		return nil, querydef.NewBackendError(def.Method(), "", err)
	}
	return conn, nil
}

// release gives conn back and reports a release failure through errp
// unless the call already failed.
func (e *Executor) release(conn store.Conn, errp *error) {
	if err := e.provider.Release(conn); err != nil {
		slog.Warn("connection release failed", "error", err)
		if *errp == nil {
			*errp = err
		}
	}
}
