package queryir

import (
	"fmt"

	"github.com/roach88/dynquery/internal/querydef"
)

// ValidationResult contains portability analysis of a plan.
//
// Every plan executes on every supported backend; warnings flag behavior
// that depends on the backend (collation, join support, implicit casts).
type ValidationResult struct {
	// IsPortable is true when no warnings were raised.
	IsPortable bool

	// Warnings lists backend-dependent features used by the plan.
	Warnings []string
}

// Validate reports the backend-dependent features of a plan.
//
// Rules:
//  1. RIGHT joins are not supported by SQLite before 3.39
//  2. Case folding follows the backend's collation for non-ASCII text
//  3. LIKE on a non-text column relies on a text cast
//
// Validate is a pure function with no side effects.
func Validate(plan *Plan) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validatePlan(plan)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validatePlan(p *Plan) {
	if p == nil {
		v.addWarning("nil plan")
		return
	}
	for _, j := range p.Joins {
		v.validateJoin(j)
	}
	for _, c := range p.Conditions {
		v.validateCondition(c)
	}
}

// validateJoin checks rule 1.
func (v *validator) validateJoin(j JoinClause) {
	if j.Kind == querydef.JoinRight {
		v.addWarning("RIGHT join to %s (%s) is not supported by every backend", j.Table, j.Alias)
	}
}

// validateCondition checks rules 2 and 3.
func (v *validator) validateCondition(c Condition) {
	if c.Attribute.Case != querydef.CaseNone || c.ValueCase != querydef.CaseNone {
		v.addWarning("Field '%s' uses case folding - results for non-ASCII text depend on backend collation", c.Column.Path)
	}

	switch c.Operation {
	case querydef.OpLike, querydef.OpNotLike:
		if !c.Column.Type.Textual() {
			v.addWarning("Field '%s' (%s) compared with LIKE - value is cast to text", c.Column.Path, c.Column.Type)
		}
	}
}
