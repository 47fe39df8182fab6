package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dynquery/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run query scenarios",
		Long: `Run scenario files against a fresh in-memory database each.

A scenario names its declarations directory, seeds fixture rows, invokes
storage methods with expectations, and asserts the final table state.
When golden/<scenario>.golden exists next to a scenario, the step trace
must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  dynq test ./scenarios
  dynq test ./scenarios --filter "user-*"
  dynq test ./scenarios --update
  dynq test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	if len(scenarioFiles) == 0 {
		if formatter.JSON() {
			return outputTestJSON(formatter, result)
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	for _, scenarioFile := range scenarioFiles {
		formatter.VerboseLog("Running scenario: %s", scenarioFile)
		scenResult := runScenario(scenarioFile, opts)
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if !formatter.JSON() {
			printScenarioResult(formatter, scenResult, opts.Update)
		}
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// findScenarioFiles finds all YAML scenario files in a directory. The
// golden subdirectory is skipped.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != dir && info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		// Only process .yaml and .yml files
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario executes a single scenario and checks or updates its
// golden trace.
func runScenario(scenarioFile string, opts *TestOptions) ScenarioResult {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return failed(filepath.Base(scenarioFile), fmt.Sprintf("failed to load scenario: %v", err))
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return failed(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	trace, err := harness.MarshalTrace(scenario.Name, result)
	if err != nil {
		return failed(scenario.Name, err.Error())
	}

	goldenPath := goldenFilePath(scenarioFile)
	if opts.Update {
		if err := writeGoldenFile(goldenPath, trace); err != nil {
			return failed(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
	} else if golden, err := os.ReadFile(goldenPath); err == nil {
		if !bytes.Equal(golden, trace) {
			result.AddError("trace does not match golden file (run with --update to regenerate)")
		}
	} else if !os.IsNotExist(err) {
		return failed(scenario.Name, fmt.Sprintf("golden comparison failed: %v", err))
	}

	return ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
}

func failed(name, message string) ScenarioResult {
	return ScenarioResult{Name: name, Pass: false, Errors: []string{message}}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// writeGoldenFile writes a trace as the golden file.
func writeGoldenFile(goldenPath string, trace []byte) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, trace, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func printScenarioResult(formatter *OutputFormatter, r ScenarioResult, updated bool) {
	w := formatter.Writer
	if r.Pass {
		if updated {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", r.Name)
		} else {
			fmt.Fprintf(w, "✓ %s\n", r.Name)
		}
		return
	}
	fmt.Fprintf(w, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := formatter.Emit(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(formatter *OutputFormatter, result TestResult) error {
	w := formatter.Writer

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
