package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenariosDir() string {
	return filepath.Join("..", "..", "testdata", "scenarios")
}

// writeScenario writes a scenario over the shared specs into dir.
func writeScenario(t *testing.T, dir, name, steps string) {
	t.Helper()
	specs, err := filepath.Abs(specsDir(t))
	require.NoError(t, err)

	content := fmt.Sprintf(`name: %s
description: generated scenario
specs: %s
fixtures:
  - entity: User
    rows:
      - {id: 1, email: alice@example.com, userName: Alice, status: active, roleId: 1}
steps:
%s`, name, specs, steps)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0644))
}

const passingSteps = `  - invoke: UserStorage.countByStatus
    args: [active]
    expect:
      count: 1
`

func TestTestCommandRunsScenarios(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenariosDir())
	require.NoError(t, err)
	assert.Contains(t, out, "✓ users")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "passing", passingSteps)
	writeScenario(t, dir, "failing", `  - invoke: UserStorage.countByStatus
    args: [active]
    expect:
      count: 5
`)

	out, err := execute(NewTestCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "golden-trace", passingSteps)

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ golden-trace (golden updated)")

	goldenPath := filepath.Join(dir, "golden", "golden-trace.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name": "golden-trace"`)
	assert.Contains(t, string(golden), `"invoke": "UserStorage.countByStatus"`)

	_, err = execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	out, err = execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "user-count", passingSteps)
	writeScenario(t, dir, "role-lookup", `  - invoke: RoleStorage.findByName
    args: [admin]
    expect:
      none: true
`)

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--filter", "user-*")
	require.NoError(t, err)
	assert.Contains(t, out, "user-count")
	assert.NotContains(t, out, "role-lookup")
	assert.Contains(t, out, "1 total")
}

func TestTestCommandLoadErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\nstep: []\n"), 0644))

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandEmptyAndMissing(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	_, err = execute(NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	for _, name := range []string{"a.yaml", "b.yml", "notes.txt", filepath.Join("golden", "c.yaml")} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}
