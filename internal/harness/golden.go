package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// ErrScenarioFailed is returned by RunWithGolden when expectations failed.
var ErrScenarioFailed = errors.New("scenario failed")

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// MarshalTrace renders a trace snapshot as indented JSON. Map keys are
// sorted by encoding/json, so the output is stable across runs.
func MarshalTrace(name string, result *Result) ([]byte, error) {
	data, err := json.MarshalIndent(TraceSnapshot{ScenarioName: name, Trace: result.Trace}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns ErrScenarioFailed if an expectation failed; a trace mismatch
// fails t through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return err
	}
	if !result.Pass {
		return fmt.Errorf("%w: %s", ErrScenarioFailed, strings.Join(result.Errors, "; "))
	}
	return nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
