package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ResolvesSpecsRelativeToFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/library_queries.yaml")
	require.NoError(t, err)

	assert.Equal(t, "library_queries", s.Name)
	assert.Equal(t, filepath.Join("testdata", "library"), s.Specs)
	require.Len(t, s.Fixtures, 2)
	assert.Equal(t, "Author", s.Fixtures[0].Entity)
	assert.Len(t, s.Fixtures[1].Rows, 5)

	require.Len(t, s.Steps, 11)
	page := s.Steps[8]
	require.NotNil(t, page.Page)
	assert.Equal(t, PageSpec{Page: 0, Size: 2}, *page.Page)
	require.NotNil(t, page.Expect.Total)
	assert.Equal(t, int64(4), *page.Expect.Total)
	assert.Equal(t, "E301", s.Steps[10].Expect.Error)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: based
description: specs resolved against an explicit base
specs: library
steps:
  - invoke: BookStorage.countByInPrintFalse
`)

	s, err := LoadScenarioWithBasePath(path, "testdata")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "library"), s.Specs)
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: typo
description: misspelled key
specs: .
step:
  - invoke: X.y
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingSpecsDir(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: nospecs
description: specs directory does not exist
specs: nowhere
steps:
  - invoke: X.y
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specs directory not found")
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:        "s",
			Description: "d",
			Specs:       "specs",
			Steps:       []Step{{Invoke: "S.m"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Scenario)
		wantErr string
	}{
		{"valid", func(s *Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"missing specs", func(s *Scenario) { s.Specs = "" }, "specs is required"},
		{"no steps", func(s *Scenario) { s.Steps = nil }, "steps list is required"},
		{"step without invoke", func(s *Scenario) { s.Steps[0].Invoke = "" }, "steps[0]: invoke is required"},
		{"zero page size", func(s *Scenario) { s.Steps[0].Page = &PageSpec{} }, "size must be positive"},
		{"fixture without entity", func(s *Scenario) { s.Fixtures = []Fixture{{}} }, "fixtures[0]: entity is required"},
		{"assertion without type", func(s *Scenario) { s.Assertions = []Assertion{{Entity: "Book"}} }, "type is required"},
		{"assertion without entity", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertRowCount}} }, "entity is required"},
		{"unknown assertion", func(s *Scenario) { s.Assertions = []Assertion{{Type: "trace_order", Entity: "Book"}} }, "unknown assertion type"},
		{"final_state without expect", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertFinalState, Entity: "Book"}} }, "expect is required"},
		{"negative row_count", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertRowCount, Entity: "Book", Count: -1}} }, "non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
