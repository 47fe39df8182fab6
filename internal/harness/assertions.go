package harness

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/roach88/dynquery/internal/executor"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/repository"
	"github.com/roach88/dynquery/internal/schema"
	"github.com/roach88/dynquery/internal/store"
)

// AssertionError is returned when an expectation or assertion fails.
type AssertionError struct {
	Type     string // expectation or assertion type
	Expected string // human-readable expected outcome
	Actual   string // human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// checkExpect compares a step outcome against its expect clause.
// A step without an expect clause only has to succeed.
func checkExpect(step Step, res *repository.Result, err error) []error {
	exp := step.Expect
	if exp == nil {
		if err != nil {
			return []error{&AssertionError{Type: "success", Expected: "no error", Actual: err.Error()}}
		}
		return nil
	}

	if exp.Error != "" {
		if err == nil {
			return []error{&AssertionError{Type: "error", Expected: exp.Error, Actual: "success"}}
		}
		if code := string(querydef.CodeOf(err)); code != exp.Error {
			return []error{&AssertionError{Type: "error", Expected: exp.Error, Actual: fmt.Sprintf("%q (%v)", code, err)}}
		}
		return nil
	}
	if err != nil {
		return []error{&AssertionError{Type: "success", Expected: "no error", Actual: err.Error()}}
	}

	var failures []error
	fail := func(typ, expected, actual string) {
		failures = append(failures, &AssertionError{Type: typ, Expected: expected, Actual: actual})
	}

	if exp.Count != nil && (res.Kind != schema.ResultCount || res.Count != *exp.Count) {
		fail("count", fmt.Sprint(*exp.Count), fmt.Sprintf("%v (%s)", res.Value(), res.Kind))
	}
	if exp.Exists != nil && (res.Kind != schema.ResultBool || res.Exists != *exp.Exists) {
		fail("exists", fmt.Sprint(*exp.Exists), fmt.Sprintf("%v (%s)", res.Value(), res.Kind))
	}
	if exp.Total != nil {
		if res.Page == nil {
			fail("total", fmt.Sprint(*exp.Total), "no page")
		} else if res.Page.Total != *exp.Total {
			fail("total", fmt.Sprint(*exp.Total), fmt.Sprint(res.Page.Total))
		}
	}
	if exp.None && res.Record != nil {
		fail("none", "no record", fmt.Sprint(res.Record.Map()))
	}

	records := resultRecords(res)
	if exp.Len != nil && len(records) != *exp.Len {
		fail("len", fmt.Sprint(*exp.Len), fmt.Sprint(len(records)))
	}
	if len(exp.Rows) > 0 {
		if len(records) < len(exp.Rows) {
			fail("rows", fmt.Sprintf("at least %d record(s)", len(exp.Rows)), fmt.Sprint(len(records)))
		} else {
			for i, want := range exp.Rows {
				if msg := matchRecord(want, records[i]); msg != "" {
					fail("rows", fmt.Sprintf("row %d %v", i, want), msg)
				}
			}
		}
	}
	return failures
}

// resultRecords returns the records carried by a list, one, or page result.
func resultRecords(res *repository.Result) []executor.Record {
	switch {
	case res.Page != nil:
		return res.Page.Items
	case res.Record != nil:
		return []executor.Record{*res.Record}
	default:
		return res.Records
	}
}

// matchRecord checks the expected fields of want against r (subset
// semantics) and describes the first mismatch, or returns "".
func matchRecord(want map[string]any, r executor.Record) string {
	for _, key := range sortedKeys(want) {
		actual, ok := r.Get(key)
		if !ok {
			return fmt.Sprintf("no output %q in %v", key, r.Names)
		}
		if !valuesEqual(want[key], actual) {
			return fmt.Sprintf("%s = %v (type %T)", key, actual, actual)
		}
	}
	return ""
}

// EvaluateAssertions runs every assertion and returns failure messages.
func EvaluateAssertions(ctx context.Context, st *store.Store, cat *schema.Catalog, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(ctx, st, cat, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(ctx context.Context, st *store.Store, cat *schema.Catalog, a Assertion) error {
	e, ok := cat.Entity(a.Entity)
	if !ok {
		return fmt.Errorf("unknown entity %q", a.Entity)
	}
	rows, err := st.Dump(ctx, e)
	if err != nil {
		return err
	}

	switch a.Type {
	case AssertRowCount:
		if len(rows) != a.Count {
			return &AssertionError{
				Type:     AssertRowCount,
				Expected: fmt.Sprintf("%d row(s) of %s", a.Count, a.Entity),
				Actual:   fmt.Sprintf("%d row(s)", len(rows)),
			}
		}
		return nil
	case AssertFinalState:
		return assertFinalState(rows, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertFinalState checks that exactly one row matches Where and that it
// carries the expected values.
func assertFinalState(rows []map[string]any, a Assertion) error {
	var matched []map[string]any
	for _, row := range rows {
		if subsetMatch(a.Where, row) {
			matched = append(matched, row)
		}
	}

	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Entity, formatWhere(a.Where)),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Entity, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(matched)),
		}
	}

	row := matched[0]
	for _, key := range sortedKeys(a.Expect) {
		actual, exists := row[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("property %q to exist", key),
				Actual:   "property not declared",
			}
		}
		if !valuesEqual(a.Expect[key], actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v (type %T)", key, a.Expect[key], a.Expect[key]),
				Actual:   fmt.Sprintf("%s = %v (type %T)", key, actual, actual),
			}
		}
	}
	return nil
}

func subsetMatch(want, row map[string]any) bool {
	for k, v := range want {
		if !valuesEqual(v, row[k]) {
			return false
		}
	}
	return true
}

// valuesEqual compares a YAML-decoded expected value with a decoded
// database value. Numbers compare by value, times against RFC 3339 or
// date strings, collections element-wise.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if ef, ok := toFloat(expected); ok {
		af, ok := toFloat(actual)
		return ok && math.Abs(ef-af) < 1e-9
	}

	if at, ok := actual.(time.Time); ok {
		switch e := expected.(type) {
		case time.Time:
			return e.Equal(at)
		case string:
			for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
				if et, err := time.Parse(layout, e); err == nil {
					return et.Equal(at)
				}
			}
		}
		return false
	}

	if es, ok := expected.([]any); ok {
		av := reflect.ValueOf(actual)
		if av.Kind() != reflect.Slice || av.Len() != len(es) {
			return false
		}
		for i := range es {
			if !valuesEqual(es[i], av.Index(i).Interface()) {
				return false
			}
		}
		return true
	}

	if reflect.DeepEqual(expected, actual) {
		return true
	}
	if es, ok := expected.(string); ok {
		if as, ok := actual.(string); ok {
			return strings.EqualFold(es, as) && isUUIDLike(es)
		}
	}
	return false
}

// isUUIDLike reports whether s has the 8-4-4-4-12 shape, the only text
// compared case-insensitively.
func isUUIDLike(s string) bool {
	return len(s) == 36 && s[8] == '-' && s[13] == '-' && s[18] == '-' && s[23] == '-'
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatWhere creates a human-readable description of where conditions.
func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}
