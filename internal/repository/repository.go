// Package repository registers declared storages and invokes their methods.
//
// Registration does all the work that can fail without a database: every
// method is parsed, its parameter bindings validated, and its attribute
// paths resolved into a plan. A storage with one bad method registers
// nothing. Invocation then only binds arguments and executes.
//
// Registered entries live in an immutable map that is replaced, never
// mutated, so lookups take no lock.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/dynquery/internal/binding"
	"github.com/roach88/dynquery/internal/executor"
	"github.com/roach88/dynquery/internal/parser"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/queryir"
	"github.com/roach88/dynquery/internal/schema"
)

// Entry is one registered method.
type Entry struct {
	Method      schema.Method
	Definition  *querydef.Definition
	Plan        *queryir.Plan
	Fingerprint string
	Portability queryir.ValidationResult
}

// Name returns the qualified "Storage.method" name.
func (e *Entry) Name() string {
	return e.Method.Ref().String()
}

// Repository maps qualified method names to registered entries.
type Repository struct {
	catalog *schema.Catalog
	chain   *parser.Chain
	exec    *executor.Executor
	logger  *slog.Logger

	mu      sync.Mutex // serializes Register
	entries atomic.Pointer[map[string]*Entry]
}

// New creates an empty repository. A nil logger discards output.
func New(cat *schema.Catalog, chain *parser.Chain, exec *executor.Executor, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Repository{catalog: cat, chain: chain, exec: exec, logger: logger}
	empty := map[string]*Entry{}
	r.entries.Store(&empty)
	return r
}

// Register parses and plans every method of the named storage. All
// method errors are reported together; on error nothing is registered.
func (r *Repository) Register(storage string) error {
	s, ok := r.catalog.Storage(storage)
	if !ok {
		return fmt.Errorf("unknown storage: %q", storage)
	}
	entity, ok := r.catalog.Entity(s.Entity)
	if !ok {
		return fmt.Errorf("storage %s: unknown entity %q", storage, s.Entity)
	}

	built := make(map[string]*Entry, len(s.Methods))
	var errs []error
	for _, m := range s.Methods {
		e, err := r.build(m, entity)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		built[e.Name()] = e
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("register %s: %w", storage, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := maps.Clone(*r.entries.Load())
	maps.Copy(next, built)
	r.entries.Store(&next)

	r.logger.Info("storage registered", "storage", storage, "methods", len(built))
	return nil
}

// RegisterAll registers every storage of the catalog in name order and
// stops at the first failure.
func (r *Repository) RegisterAll() error {
	for _, name := range r.catalog.StorageNames() {
		if err := r.Register(name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) build(m schema.Method, entity *schema.Entity) (*Entry, error) {
	def, err := r.chain.Parse(m, r.catalog)
	if err != nil {
		return nil, err
	}
	plan, err := queryir.NewPlan(def, entity, r.catalog)
	if err != nil {
		return nil, err
	}
	fp, err := querydef.Fingerprint(def)
	if err != nil {
		return nil, fmt.Errorf("%s: fingerprint: %w", m.Ref(), err)
	}

	e := &Entry{
		Method:      m,
		Definition:  def,
		Plan:        plan,
		Fingerprint: fp,
		Portability: queryir.Validate(plan),
	}

	r.logger.Debug("method registered",
		"method", e.Name(),
		"action", def.Action(),
		"fingerprint", fp)
	for _, d := range def.Diagnostics() {
		r.logger.Warn("query diagnostic", "method", e.Name(), "diagnostic", d.String())
	}
	for _, w := range e.Portability.Warnings {
		r.logger.Warn("portability warning", "method", e.Name(), "warning", w)
	}
	return e, nil
}

// Lookup returns the entry registered under "Storage.method".
func (r *Repository) Lookup(name string) (*Entry, bool) {
	e, ok := (*r.entries.Load())[name]
	return e, ok
}

// Entries returns every registered entry ordered by name.
func (r *Repository) Entries() []*Entry {
	m := *r.entries.Load()
	out := make([]*Entry, 0, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[name])
	}
	return out
}

// Result is the outcome of an invocation, shaped by the method's declared
// result kind. Only the fields for that kind are set.
type Result struct {
	Kind    schema.ResultKind
	Records []executor.Record
	Record  *executor.Record
	Page    *executor.Page
	Count   int64
	Exists  bool
}

// Value returns the result as a single value: the records, record, page,
// count, or existence flag.
func (r *Result) Value() any {
	switch r.Kind {
	case schema.ResultOne:
		if r.Record == nil {
			return nil
		}
		return *r.Record
	case schema.ResultPage:
		return r.Page
	case schema.ResultCount:
		return r.Count
	case schema.ResultBool:
		return r.Exists
	default:
		return r.Records
	}
}

// Invoke runs a registered method with positional arguments in parameter
// order. Page methods must use InvokePage.
func (r *Repository) Invoke(ctx context.Context, name string, args ...any) (*Result, error) {
	e, bound, err := r.prepare(name, args)
	if err != nil {
		return nil, err
	}

	res := &Result{Kind: e.Method.Returns}
	switch e.Method.Returns {
	case schema.ResultPage:
		return nil, querydef.NewExecutionBindingError(e.Method.Ref(), "page methods require pagination")

	case schema.ResultCount:
		res.Count, err = r.exec.Count(ctx, e.Plan, bound)

	case schema.ResultBool:
		res.Exists, err = r.exec.Exists(ctx, e.Plan, bound)

	case schema.ResultOne:
		var records []executor.Record
		if records, err = r.exec.Find(ctx, e.Plan, bound); err == nil && len(records) > 0 {
			res.Record = &records[0]
		}

	default:
		res.Records, err = r.exec.Find(ctx, e.Plan, bound)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// InvokePage runs a registered page method for one page.
func (r *Repository) InvokePage(ctx context.Context, name string, p executor.Pagination, args ...any) (*Result, error) {
	e, bound, err := r.prepare(name, args)
	if err != nil {
		return nil, err
	}
	if e.Method.Returns != schema.ResultPage {
		return nil, querydef.NewExecutionBindingError(e.Method.Ref(),
			fmt.Sprintf("method returns %s, not page", e.Method.Returns))
	}

	page, err := r.exec.FindPage(ctx, e.Plan, bound, p)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: schema.ResultPage, Page: page}, nil
}

// prepare looks up name and binds args to its parameters.
func (r *Repository) prepare(name string, args []any) (*Entry, binding.Arguments, error) {
	e, ok := r.Lookup(name)
	if !ok {
		return nil, binding.Arguments{}, fmt.Errorf("method not registered: %q", name)
	}
	if len(args) != len(e.Method.Params) {
		return nil, binding.Arguments{}, querydef.NewExecutionBindingError(e.Method.Ref(),
			fmt.Sprintf("expected %d argument(s), got %d", len(e.Method.Params), len(args)))
	}
	return e, binding.NewArguments(e.Method, args), nil
}
