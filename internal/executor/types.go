package executor

import (
	"fmt"
	"math"

	"github.com/roach88/dynquery/internal/querydef"
)

// Record is one result row. Type is the entity or projection name, empty
// for tuples. Names and Values are parallel.
type Record struct {
	Type   string
	Names  []string
	Values []any
}

// Get returns the value of the named output.
func (r Record) Get(name string) (any, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the record as name → value.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Names))
	for i, n := range r.Names {
		m[n] = r.Values[i]
	}
	return m
}

// Pagination selects one zero-based page of Size rows.
type Pagination struct {
	Page int
	Size int
}

// Validate rejects negative pages, non-positive sizes, and pages whose
// offset does not fit in an int.
func (p Pagination) Validate() error {
	if p.Page < 0 {
		return fmt.Errorf("page must be >= 0, got %d", p.Page)
	}
	if p.Size <= 0 {
		return fmt.Errorf("page size must be > 0, got %d", p.Size)
	}
	if p.Page > math.MaxInt/p.Size {
		return fmt.Errorf("page %d of size %d is out of range", p.Page, p.Size)
	}
	return nil
}

// Offset returns the index of the first row of the page.
func (p Pagination) Offset() int {
	return p.Page * p.Size
}

// Page is one page of records plus the total row count of the query.
type Page struct {
	Items []Record
	Page  int
	Size  int
	Total int64
}

// TotalPages returns the number of pages Total rows fill.
func (p *Page) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

// Outcome is the result of Execute. Only the field matching Action is set.
type Outcome struct {
	Action  querydef.Action
	Records []Record
	Count   int64
	Exists  bool
}
