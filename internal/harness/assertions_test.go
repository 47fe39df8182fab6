package harness

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynquery/internal/executor"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/repository"
	"github.com/roach88/dynquery/internal/schema"
)

func TestValuesEqual(t *testing.T) {
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"nil both", nil, nil, true},
		{"nil expected", nil, "x", false},
		{"nil actual", "x", nil, false},
		{"yaml int vs int64", 3, int64(3), true},
		{"yaml int vs float64", 3, 3.0, true},
		{"different numbers", 3, int64(4), false},
		{"number vs string", 3, "3", false},
		{"strings", "Dune", "Dune", true},
		{"case matters for text", "dune", "Dune", false},
		{"uuid case folds", "0190A1B2-0000-7000-8000-000000000001", "0190a1b2-0000-7000-8000-000000000001", true},
		{"bools", true, true, true},
		{"time vs RFC 3339", "2024-03-01T10:00:00Z", when, true},
		{"time vs date", "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"time mismatch", "2024-03-02", when, false},
		{"time vs garbage", "soon", when, false},
		{"collections", []any{1, "a"}, []any{int64(1), "a"}, true},
		{"collection length", []any{1}, []any{int64(1), int64(2)}, false},
		{"collection vs scalar", []any{1}, int64(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesEqual(tt.expected, tt.actual))
		})
	}
}

func bookRecord(id int64, title string) executor.Record {
	return executor.Record{Type: "Book", Names: []string{"id", "title"}, Values: []any{id, title}}
}

func TestCheckExpect(t *testing.T) {
	two := 2
	three := int64(3)
	yes := true

	list := &repository.Result{Kind: schema.ResultList, Records: []executor.Record{bookRecord(1, "Dune"), bookRecord(2, "Emma")}}
	count := &repository.Result{Kind: schema.ResultCount, Count: 3}
	page := &repository.Result{Kind: schema.ResultPage, Page: &executor.Page{Items: []executor.Record{bookRecord(1, "Dune")}, Size: 1, Total: 3}}
	none := &repository.Result{Kind: schema.ResultOne}
	bindErr := querydef.NewExecutionBindingError(querydef.MethodRef{Owner: "S", Name: "m"}, "missing")

	tests := []struct {
		name     string
		expect   *ExpectClause
		res      *repository.Result
		err      error
		failures int
	}{
		{"no expect success", nil, list, nil, 0},
		{"no expect error", nil, nil, bindErr, 1},
		{"expected error code", &ExpectClause{Error: "E301"}, nil, bindErr, 0},
		{"wrong error code", &ExpectClause{Error: "E302"}, nil, bindErr, 1},
		{"uncoded error", &ExpectClause{Error: "E302"}, nil, errors.New("boom"), 1},
		{"expected error but success", &ExpectClause{Error: "E301"}, list, nil, 1},
		{"unexpected error", &ExpectClause{Len: &two}, nil, bindErr, 1},
		{"len", &ExpectClause{Len: &two}, list, nil, 0},
		{"rows in order", &ExpectClause{Rows: []map[string]any{{"title": "Dune"}, {"id": 2}}}, list, nil, 0},
		{"rows out of order", &ExpectClause{Rows: []map[string]any{{"title": "Emma"}}}, list, nil, 1},
		{"rows unknown output", &ExpectClause{Rows: []map[string]any{{"author": "x"}}}, list, nil, 1},
		{"too few rows", &ExpectClause{Rows: []map[string]any{{}, {}, {}}}, list, nil, 1},
		{"count", &ExpectClause{Count: &three}, count, nil, 0},
		{"count on list", &ExpectClause{Count: &three}, list, nil, 1},
		{"exists on count", &ExpectClause{Exists: &yes}, count, nil, 1},
		{"total", &ExpectClause{Total: &three, Len: new(int)}, page, nil, 1},
		{"total without page", &ExpectClause{Total: &three}, list, nil, 1},
		{"none", &ExpectClause{None: true, Len: new(int)}, none, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := checkExpect(Step{Invoke: "S.m", Expect: tt.expect}, tt.res, tt.err)
			assert.Len(t, failures, tt.failures, "failures: %v", failures)
		})
	}
}

func TestAssertFinalState(t *testing.T) {
	rows := []map[string]any{
		{"id": int64(1), "name": "Frank Herbert", "country": "US"},
		{"id": int64(2), "name": "Ursula K. Le Guin", "country": "US"},
		{"id": int64(3), "name": "Anonymous", "country": nil},
	}

	err := assertFinalState(rows, Assertion{Entity: "Author", Where: map[string]any{"id": 3}, Expect: map[string]any{"country": nil}})
	assert.NoError(t, err)

	err = assertFinalState(rows, Assertion{Entity: "Author", Where: map[string]any{"id": 9}, Expect: map[string]any{"name": "x"}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "row not found", ae.Actual)
	assert.Contains(t, ae.Expected, "id=9")

	err = assertFinalState(rows, Assertion{Entity: "Author", Where: map[string]any{"country": "US"}, Expect: map[string]any{"name": "x"}})
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Actual, "2 rows matched")

	err = assertFinalState(rows, Assertion{Entity: "Author", Where: map[string]any{"id": 1}, Expect: map[string]any{"name": "Frank"}})
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Actual, "name = Frank Herbert")

	err = assertFinalState(rows, Assertion{Entity: "Author", Where: map[string]any{"id": 1}, Expect: map[string]any{"born": 1920}})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "property not declared", ae.Actual)
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{Type: "len", Expected: "2", Actual: "3"}
	assert.Equal(t, "len: expected 2, got 3", err.Error())
}
