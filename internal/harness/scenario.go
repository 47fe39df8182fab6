package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs is the declarations directory to compile and register.
	// Relative paths are resolved against the scenario file location.
	Specs string `yaml:"specs"`

	// Fallback is the parser fallback policy ("warn" or "strict").
	// Empty means warn.
	Fallback string `yaml:"fallback,omitempty"`

	// Fixtures are inserted in order before the first step.
	Fixtures []Fixture `yaml:"fixtures,omitempty"`

	// Steps are method invocations with optional expectations.
	Steps []Step `yaml:"steps"`

	// Assertions validate stored state after every step has run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Fixture seeds rows of one entity. Row keys are property names.
type Fixture struct {
	Entity string           `yaml:"entity"`
	Rows   []map[string]any `yaml:"rows"`
}

// Step invokes one storage method.
type Step struct {
	// Invoke is the qualified method name (e.g., "BookStorage.findByTitle").
	Invoke string `yaml:"invoke"`

	// Args are the call arguments in parameter order. YAML sequences
	// become collection arguments.
	Args []any `yaml:"args,omitempty"`

	// Page selects one page; required for methods returning page.
	Page *PageSpec `yaml:"page,omitempty"`

	// Expect specifies the expected outcome. If nil, the step only has to
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// PageSpec is a zero-based page request.
type PageSpec struct {
	Page int `yaml:"page"`
	Size int `yaml:"size"`
}

// ExpectClause specifies the expected outcome of a step.
// Only the fields that are set are checked.
type ExpectClause struct {
	// Error is the QueryError code the step must fail with (e.g., "E301").
	Error string `yaml:"error,omitempty"`

	// Len is the number of records returned.
	Len *int `yaml:"len,omitempty"`

	// Rows are matched in order against the returned records; each row
	// is a subset match on output names.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Count is the result of a count method.
	Count *int64 `yaml:"count,omitempty"`

	// Exists is the result of a bool method.
	Exists *bool `yaml:"exists,omitempty"`

	// Total is the total row count of a page.
	Total *int64 `yaml:"total,omitempty"`

	// None requires a one method to find nothing.
	None bool `yaml:"none,omitempty"`
}

// Assertion validates stored state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "row_count": entity has exactly Count rows
	// - "final_state": exactly one row matches Where and has Expect values
	Type string `yaml:"type"`

	// Entity is the entity whose rows are checked.
	Entity string `yaml:"entity"`

	// Count is the expected number of rows (used by row_count).
	Count int `yaml:"count,omitempty"`

	// Where filters rows by property value (used by final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected property values (used by final_state).
	// Subset match - only specified properties are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount   = "row_count"
	AssertFinalState = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// The specs path is resolved against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative specs path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Specs != "" && !filepath.IsAbs(scenario.Specs) && basePath != "" {
		scenario.Specs = filepath.Join(basePath, scenario.Specs)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Specs); os.IsNotExist(err) {
		return nil, fmt.Errorf("invalid scenario: specs directory not found: %s", scenario.Specs)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without resolving paths or
// validating required fields.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // reject typos like "assertion:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Specs == "" {
		return fmt.Errorf("specs is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, f := range s.Fixtures {
		if f.Entity == "" {
			return fmt.Errorf("fixtures[%d]: entity is required", i)
		}
	}

	for i, step := range s.Steps {
		if step.Invoke == "" {
			return fmt.Errorf("steps[%d]: invoke is required", i)
		}
		if step.Page != nil && step.Page.Size <= 0 {
			return fmt.Errorf("steps[%d].page: size must be positive", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Entity == "" {
		return fmt.Errorf("assertions[%d]: entity is required", index)
	}

	switch a.Type {
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
