package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynquery/internal/config"
	"github.com/roach88/dynquery/internal/querysql"
)

func TestCompileValidSpecs(t *testing.T) {
	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), specsDir(t))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 storage(s), 10 method(s) for sqlite")
	assert.Contains(t, out, "UserStorage (User):")
	assert.Contains(t, out, "findByEmail → list")
	assert.Contains(t, out, "FROM users t0 WHERE t0.email = ?")
}

func TestCompileValidSpecsJSON(t *testing.T) {
	out, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), specsDir(t))
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, querysql.DialectSQLite, resp.Data.Dialect)
	assert.Equal(t, 2, resp.Data.Entities)
	require.Len(t, resp.Data.Storages, 2)
	assert.Equal(t, "RoleStorage", resp.Data.Storages[0].Name)
	assert.Equal(t, "UserStorage", resp.Data.Storages[1].Name)

	methods := map[string]MethodSummary{}
	for _, m := range resp.Data.Storages[1].Methods {
		methods[m.Name] = m
	}
	require.Len(t, methods, 9)
	assert.Equal(t, "COUNT", string(methods["countByStatus"].Action))
	assert.Equal(t, "EXISTS", string(methods["existsByEmail"].Action))
	assert.True(t, methods["nativeByStatus"].Native)
	assert.Contains(t, methods["findActive"].SQL, "LIMIT 20 OFFSET 0")
	for name, m := range methods {
		assert.NotEmpty(t, m.Fingerprint, name)
		assert.NotEmpty(t, m.SQL, name)
	}
}

func TestCompilePostgresDialect(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "pgx"
	cfg.Database.DSN = "postgres://localhost/app"

	out, err := execute(NewCompileCommand(&RootOptions{Format: "text", cfg: cfg}), specsDir(t))
	require.NoError(t, err)
	assert.Contains(t, out, "for postgres")
	assert.Contains(t, out, "WHERE t0.email = $1")
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), specsDir(t), "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote compiled methods to")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Storages, 2)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	_, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), "/nonexistent/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
}

func TestCompileEmptyDirectory(t *testing.T) {
	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "E003")
}

func TestCompileCollectsAllErrors(t *testing.T) {
	dir := writeSpecs(t, `
entity: A: table: "a"
entity: B: {
	table: "b"
	fields: id: {column: "id"}
}
`)

	out, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   []CLIError `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "E101", resp.Data[0].Code)
	assert.Equal(t, "E103", resp.Data[1].Code)
}

func TestCompileReportsQueryErrors(t *testing.T) {
	dir := writeSpecs(t, `
entity: User: {
	table: "users"
	fields: {id: "int", email: "string"}
}
storage: UserStorage: {
	entity: "User"
	methods: {
		findByNickname: params: [{name: "nick", type: "string"}]
		findByEmail: {}
	}
}
`)

	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, "E203")
	assert.Contains(t, out, "E202")
}
