// Package binding cross-checks query placeholders against declared method
// parameters and resolves call-time values.
//
// Validate runs once at registration so a misspelled named parameter stops
// the owning storage from registering at all. Arguments.Resolve runs on
// every call and repeats the index checks, since literal and positional
// mismatches can still surface when a caller passes too few values.
package binding

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/schema"
)

// Validate reports every substitution of def that has no matching parameter
// on m. Named substitutions must match a parameter's bound name; positional
// substitutions must index into the parameter list.
// The returned error joins one ParameterBindingError per problem.
func Validate(m schema.Method, def *querydef.Definition) error {
	names := m.ParamNames()
	ref := m.Ref()

	var errs []error
	reported := make(map[string]bool)
	for _, sub := range def.Substitutions() {
		var problem string
		switch sub.Kind {
		case querydef.SubstitutionNamed:
			if !slices.Contains(names, sub.Key) {
				problem = fmt.Sprintf("named parameter :%s has no matching method parameter (declared: %v)", sub.Key, names)
			}
		case querydef.SubstitutionPositional:
			if sub.Index < 0 || sub.Index >= len(names) {
				problem = fmt.Sprintf("positional parameter %s is out of range: method declares %d parameter(s)", sub, len(names))
			}
		}
		if problem == "" || reported[sub.String()] {
			continue
		}
		reported[sub.String()] = true
		errs = append(errs, querydef.NewParameterBindingError(ref, def.Raw(), sub.Token, problem))
	}
	return errors.Join(errs...)
}

// Arguments pairs call-time values with the parameter names they were
// declared under. It is built per call and discarded afterwards.
type Arguments struct {
	method querydef.MethodRef
	names  []string
	values []any
}

// NewArguments binds values to the parameters of m in declaration order.
func NewArguments(m schema.Method, values []any) Arguments {
	return Arguments{method: m.Ref(), names: m.ParamNames(), values: values}
}

// Len returns the number of supplied values.
func (a Arguments) Len() int { return len(a.values) }

// Values returns the supplied values in declaration order.
func (a Arguments) Values() []any { return slices.Clone(a.values) }

// Resolve returns the value a substitution refers to. Exactly one source
// applies: a named parameter, a positional index, or an inline literal.
// A substitution without a source is an ExecutionBindingError.
func (a Arguments) Resolve(sub querydef.Substitution) (any, error) {
	switch sub.Kind {
	case querydef.SubstitutionNamed:
		idx := slices.Index(a.names, sub.Key)
		if idx < 0 {
			return nil, querydef.NewExecutionBindingError(a.method, fmt.Sprintf("no parameter named %q", sub.Key))
		}
		if idx >= len(a.values) {
			return nil, querydef.NewExecutionBindingError(a.method,
				fmt.Sprintf("parameter %q (index %d) not supplied: got %d argument(s)", sub.Key, idx, len(a.values)))
		}
		return a.values[idx], nil
	case querydef.SubstitutionPositional:
		if sub.Index < 0 || sub.Index >= len(a.values) {
			return nil, querydef.NewExecutionBindingError(a.method,
				fmt.Sprintf("positional parameter %s not supplied: got %d argument(s)", sub, len(a.values)))
		}
		return a.values[sub.Index], nil
	case querydef.SubstitutionLiteral:
		if sub.Literal == nil {
			return nil, nil
		}
		return sub.Literal.Value(), nil
	default:
		return nil, querydef.NewExecutionBindingError(a.method, "condition has no value source")
	}
}
