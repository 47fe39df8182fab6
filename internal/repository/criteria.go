package repository

import (
	"context"
	"fmt"

	"github.com/roach88/dynquery/internal/executor"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/queryir"
)

// criteriaMethod is the method name criteria calls report errors under.
const criteriaMethod = "criteria"

// FindMatching returns the entities of storage that match c, in sort
// order. A nil c matches every entity.
func (r *Repository) FindMatching(ctx context.Context, storage string, c queryir.Criteria, sort queryir.Sort) ([]executor.Record, error) {
	plan, sel, err := r.planCriteria(storage, c, sort)
	if err != nil {
		return nil, err
	}
	return r.exec.FindSelect(ctx, plan, sel)
}

// FindMatchingPage returns one page of the entities of storage that match c.
func (r *Repository) FindMatchingPage(ctx context.Context, storage string, c queryir.Criteria, sort queryir.Sort, p executor.Pagination) (*executor.Page, error) {
	plan, sel, err := r.planCriteria(storage, c, sort)
	if err != nil {
		return nil, err
	}
	return r.exec.FindSelectPage(ctx, plan, sel, p)
}

// CountMatching returns the number of entities of storage that match c.
func (r *Repository) CountMatching(ctx context.Context, storage string, c queryir.Criteria) (int64, error) {
	plan, sel, err := r.planCriteria(storage, c, nil)
	if err != nil {
		return 0, err
	}
	return r.exec.CountSelect(ctx, plan, sel)
}

// ExistsMatching reports whether any entity of storage matches c.
func (r *Repository) ExistsMatching(ctx context.Context, storage string, c queryir.Criteria) (bool, error) {
	plan, sel, err := r.planCriteria(storage, c, nil)
	if err != nil {
		return false, err
	}
	return r.exec.ExistsSelect(ctx, plan, sel)
}

func (r *Repository) planCriteria(storage string, c queryir.Criteria, sort queryir.Sort) (*queryir.Plan, *queryir.Select, error) {
	s, ok := r.catalog.Storage(storage)
	if !ok {
		return nil, nil, fmt.Errorf("unknown storage: %q", storage)
	}
	entity, ok := r.catalog.Entity(s.Entity)
	if !ok {
		return nil, nil, fmt.Errorf("storage %s: unknown entity %q", storage, s.Entity)
	}
	ref := querydef.MethodRef{Owner: storage, Name: criteriaMethod}
	plan, sel, err := queryir.PlanCriteria(ref, entity, r.catalog, c, sort)
	if err != nil {
		return nil, nil, err
	}
	r.logger.Debug("criteria planned", "storage", storage, "joins", len(plan.Joins))
	return plan, sel, nil
}
