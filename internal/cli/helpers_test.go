package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// specsDir returns the shared users declarations.
func specsDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join("..", "..", "testdata", "specs")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Skip("testdata/specs directory not found")
	}
	return dir
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeSpecs writes a single declarations file into a temp directory.
func writeSpecs(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "specs.cue"), []byte(content), 0644))
	return dir
}
