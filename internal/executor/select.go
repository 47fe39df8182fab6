package executor

import (
	"context"

	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/queryir"
)

// The Select methods run an already bound select, such as one built by
// queryir.PlanCriteria. plan supplies the method for errors and the
// output columns for scanning.

// FindSelect returns every row sel selects.
func (e *Executor) FindSelect(ctx context.Context, plan *queryir.Plan, sel *queryir.Select) ([]Record, error) {
	query, values, err := e.compiler.Find(sel)
	if err != nil {
		return nil, err
	}
	return e.records(ctx, plan, query, values)
}

// FindSelectPage returns one page of the rows sel selects.
func (e *Executor) FindSelectPage(ctx context.Context, plan *queryir.Plan, sel *queryir.Select, p Pagination) (*Page, error) {
	if err := p.Validate(); err != nil {
		return nil, querydef.NewExecutionBindingError(plan.Definition.Method(), err.Error())
	}

	total, err := e.CountSelect(ctx, plan, sel)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: []Record{}, Page: p.Page, Size: p.Size, Total: total}
	offset, size := window(plan.Definition, p)
	if size == 0 {
		return page, nil
	}

	query, values, err := e.compiler.Page(sel, offset, size)
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

// CountSelect returns the number of rows sel selects.
func (e *Executor) CountSelect(ctx context.Context, plan *queryir.Plan, sel *queryir.Select) (int64, error) {
	query, values, err := e.compiler.Count(sel)
	if err != nil {
		return 0, err
	}
	return e.scalar(ctx, plan.Definition, query, values)
}

// ExistsSelect reports whether sel selects at least one row.
func (e *Executor) ExistsSelect(ctx context.Context, plan *queryir.Plan, sel *queryir.Select) (bool, error) {
	query, values, err := e.compiler.Exists(sel)
	if err != nil {
		return false, err
	}
	n, err := e.scalar(ctx, plan.Definition, query, values)
	return n > 0, err
}
