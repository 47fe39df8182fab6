package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/dynquery/internal/compiler"
	"github.com/roach88/dynquery/internal/executor"
	"github.com/roach88/dynquery/internal/parser"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/repository"
	"github.com/roach88/dynquery/internal/schema"
	"github.com/roach88/dynquery/internal/store"
	"github.com/roach88/dynquery/internal/testutil"
)

// Harness is the scenario execution environment.
type Harness struct {
	catalog *schema.Catalog
	store   *store.Store
	repo    *repository.Repository
	clock   *testutil.DeterministicClock
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Load and compile the declarations in scenario.Specs
//  2. Create an in-memory database and its tables
//  3. Register every storage
//  4. Insert fixtures
//  5. Execute steps with expect validation
//  6. Evaluate assertions against stored rows
//
// An error is returned only when the scenario could not run at all;
// failed expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // suppress logs in tests

	cat, err := loadCatalog(scenario.Specs)
	if err != nil {
		return nil, err
	}

	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	st.SetKeyGenerator(testutil.NewSequentialKeyGenerator())

	if err := st.Migrate(ctx, cat); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	policy, err := parser.ParseFallbackPolicy(scenario.Fallback)
	if err != nil {
		return nil, err
	}
	chain := parser.NewChain(parser.Options{Fallback: policy, Logger: logger})
	repo := repository.New(cat, chain, executor.New(st, st.Dialect()), logger)
	if err := repo.RegisterAll(); err != nil {
		return nil, fmt.Errorf("failed to register storages: %w", err)
	}

	h := &Harness{
		catalog: cat,
		store:   st,
		repo:    repo,
		clock:   testutil.NewDeterministicClock(),
		logger:  logger,
	}

	if err := h.insertFixtures(ctx, scenario.Fixtures); err != nil {
		return nil, fmt.Errorf("failed to insert fixtures: %w", err)
	}

	result := NewResult()
	h.executeSteps(ctx, scenario.Steps, result)

	for _, errMsg := range EvaluateAssertions(ctx, st, cat, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// loadCatalog compiles and validates the declarations in dir.
func loadCatalog(dir string) (*schema.Catalog, error) {
	loaded, errs := compiler.LoadDir(dir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load specs: %w", errs[0])
	}
	if verrs := compiler.Validate(loaded.Catalog); len(verrs) > 0 {
		return nil, fmt.Errorf("invalid specs: %w", verrs[0])
	}
	return loaded.Catalog, nil
}

// insertFixtures writes fixture rows in declaration order.
func (h *Harness) insertFixtures(ctx context.Context, fixtures []Fixture) error {
	for i, f := range fixtures {
		e, ok := h.catalog.Entity(f.Entity)
		if !ok {
			return fmt.Errorf("fixtures[%d]: unknown entity %q", i, f.Entity)
		}
		if err := h.store.InsertAll(ctx, e, f.Rows); err != nil {
			return fmt.Errorf("fixtures[%d]: %w", i, err)
		}
		h.logger.Info("fixtures inserted", "entity", f.Entity, "rows", len(f.Rows))
	}
	return nil
}

// executeSteps invokes every step, traces it, and checks its expect clause.
// A failing step does not stop the scenario.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) {
	for i, step := range steps {
		res, err := h.invoke(ctx, step)

		ev := TraceEvent{
			Seq:    h.clock.Next(),
			Invoke: step.Invoke,
			Args:   step.Args,
		}
		if entry, ok := h.repo.Lookup(step.Invoke); ok {
			ev.Kind = string(entry.Method.Returns)
		}
		if err != nil {
			ev.Error = errorLabel(err)
		} else {
			ev.Value = ResultValue(res)
		}
		result.AddTrace(ev)

		for _, failure := range checkExpect(step, res, err) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Invoke, failure))
		}

		h.logger.Info("step completed",
			"step", i,
			"invoke", step.Invoke,
			"error", ev.Error,
		)
	}
}

func (h *Harness) invoke(ctx context.Context, step Step) (*repository.Result, error) {
	if step.Page != nil {
		return h.repo.InvokePage(ctx, step.Invoke, executor.Pagination{Page: step.Page.Page, Size: step.Page.Size}, step.Args...)
	}
	return h.repo.Invoke(ctx, step.Invoke, step.Args...)
}

// errorLabel returns the QueryError code of err, or its message.
func errorLabel(err error) string {
	if code := querydef.CodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}

// ResultValue converts a result into plain maps and slices, the form
// traces and CLI output record.
func ResultValue(res *repository.Result) any {
	switch res.Kind {
	case schema.ResultCount:
		return res.Count
	case schema.ResultBool:
		return res.Exists
	case schema.ResultOne:
		if res.Record == nil {
			return nil
		}
		return res.Record.Map()
	case schema.ResultPage:
		return map[string]any{
			"items": recordMaps(res.Page.Items),
			"page":  res.Page.Page,
			"size":  res.Page.Size,
			"total": res.Page.Total,
		}
	default:
		return recordMaps(res.Records)
	}
}

func recordMaps(records []executor.Record) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = r.Map()
	}
	return out
}
