package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidSpecs(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), specsDir(t))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All specs valid")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), specsDir(t))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidateDeclarationErrors(t *testing.T) {
	dir := writeSpecs(t, `
entity: User: {
	table: "users"
	fields: {id: "int", email: "string"}
}
storage: UserStorage: {
	entity: "User"
	methods: findAll: returns: "many"
}
`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E121", resp.Error.Code)
}

func TestValidateMethodErrors(t *testing.T) {
	dir := writeSpecs(t, `
entity: User: {
	table: "users"
	fields: {id: "int", email: "string"}
}
storage: UserStorage: {
	entity: "User"
	methods: findByNickname: params: [{name: "nick", type: "string"}]
}
`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E203")
}

func TestValidateReportsRelationCycles(t *testing.T) {
	dir := writeSpecs(t, `
entity: Employee: {
	table: "employees"
	fields: {id: "int", managerId: {type: "int", column: "manager_id"}}
	relations: manager: {entity: "Employee", local: "manager_id", foreign: "id"}
}
storage: EmployeeStorage: {
	entity: "Employee"
	methods: findByManagerId: params: [{name: "id", type: "int"}]
}
`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Warnings, 1)
	assert.Equal(t, []string{"Employee", "Employee"}, resp.Data.Warnings[0].Path)
}
