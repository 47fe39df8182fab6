package queryir

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/dynquery/internal/binding"
	"github.com/roach88/dynquery/internal/querydef"
)

var comparisons = map[querydef.Operation]Comparison{
	querydef.OpEqual:              CmpEqual,
	querydef.OpNotEqual:           CmpNotEqual,
	querydef.OpGreaterThan:        CmpGreaterThan,
	querydef.OpGreaterThanOrEqual: CmpGreaterThanOrEqual,
	querydef.OpLessThan:           CmpLessThan,
	querydef.OpLessThanOrEqual:    CmpLessThanOrEqual,
}

// Bind resolves the plan's substitutions against args and builds the
// call's Select. Conditions fold left to right: A or B and C is
// (A or B) and C.
func Bind(plan *Plan, args binding.Arguments) (*Select, error) {
	def := plan.Definition
	sel := &Select{
		Table:    plan.Table,
		Alias:    plan.Alias,
		Key:      plan.Key,
		Distinct: def.Distinct(),
		Outputs:  plan.Outputs,
		Joins:    plan.Joins,
		Orders:   plan.Orders,
	}
	sel.Limit, sel.Limited = def.Limit()

	for _, c := range plan.Conditions {
		pred, err := bindCondition(def.Method(), c, args)
		if err != nil {
			return nil, err
		}
		sel.Filter = combine(sel.Filter, pred, c.Connector)
	}
	return sel, nil
}

func combine(acc, next Predicate, conn querydef.Connector) Predicate {
	if acc == nil {
		return next
	}
	if conn == querydef.ConnectorOr {
		if or, ok := acc.(Or); ok {
			return Or{Predicates: append(append([]Predicate{}, or.Predicates...), next)}
		}
		return Or{Predicates: []Predicate{acc, next}}
	}
	if and, ok := acc.(And); ok {
		return And{Predicates: append(append([]Predicate{}, and.Predicates...), next)}
	}
	return And{Predicates: []Predicate{acc, next}}
}

func bindCondition(ref querydef.MethodRef, c Condition, args binding.Arguments) (Predicate, error) {
	left := Operand{Column: c.Column, Case: c.Attribute.Case}

	switch c.Operation {
	case querydef.OpIsNull:
		return Null{Left: left}, nil
	case querydef.OpIsNotNull:
		return Null{Left: left, Negated: true}, nil
	}

	v, err := args.Resolve(c.Value)
	if err != nil {
		return nil, err
	}
	return bindValue(ref, c, v)
}

// bindValue builds the predicate of a value condition for the resolved
// value v.
func bindValue(ref querydef.MethodRef, c Condition, v any) (Predicate, error) {
	left := Operand{Column: c.Column, Case: c.Attribute.Case}
	v, err := normalize(v)
	if err != nil {
		return nil, querydef.NewExecutionBindingError(ref, fmt.Sprintf("%s: %v", c.Raw, err))
	}
	v = foldCase(v, c.ValueCase)

	fail := func(format string, a ...any) error {
		return querydef.NewExecutionBindingError(ref, fmt.Sprintf("%s: %s", c.Column.Path, fmt.Sprintf(format, a...)))
	}

	switch c.Operation {
	case querydef.OpLike, querydef.OpNotLike:
		if v == nil {
			return nil, fail("LIKE requires a non-null value")
		}
		if _, many := collection(v); many {
			return nil, fail("LIKE requires a single value")
		}
		left.Text = !c.Column.Type.Textual()
		return Like{
			Left:    left,
			Pattern: c.Wildcard.Apply(toText(v)),
			Negated: c.Operation == querydef.OpNotLike,
		}, nil

	case querydef.OpIn, querydef.OpNotIn:
		values, ok := collection(v)
		if !ok {
			return nil, fail("IN requires a collection value, got %T", v)
		}
		return In{Left: left, Values: values, Negated: c.Operation == querydef.OpNotIn}, nil

	case querydef.OpEqual, querydef.OpNotEqual:
		if v == nil {
			return Null{Left: left, Negated: c.Operation == querydef.OpNotEqual}, nil
		}
	}

	cmp, ok := comparisons[c.Operation]
	if !ok {
		return nil, fail("unsupported operation %s", c.Operation)
	}
	if v == nil {
		return nil, fail("%s requires a non-null value", cmp)
	}
	if _, many := collection(v); many {
		return nil, fail("%s requires a single value", cmp)
	}
	return Compare{Left: left, Op: cmp, Value: v}, nil
}

// normalize unwraps driver.Valuer values so that types such as uuid.UUID
// bind as their database representation.
func normalize(v any) (any, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		return valuer.Value()
	}
	return v, nil
}

// collection returns the elements of a slice or array value. Byte slices
// are single values.
func collection(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		elem, err := normalize(rv.Index(i).Interface())
		if err != nil {
			return nil, false
		}
		out[i] = elem
	}
	return out, true
}

// foldCase applies fn to string values and to the string elements of
// collections.
func foldCase(v any, fn querydef.CaseFunction) any {
	if fn == querydef.CaseNone || v == nil {
		return v
	}
	if s, ok := v.(string); ok {
		return applyCase(s, fn)
	}
	if elems, ok := collection(v); ok {
		for i, e := range elems {
			if s, ok := e.(string); ok {
				elems[i] = applyCase(s, fn)
			}
		}
		return elems
	}
	return v
}

func applyCase(s string, fn querydef.CaseFunction) string {
	switch fn {
	case querydef.CaseLower:
		return strings.ToLower(s)
	case querydef.CaseUpper:
		return strings.ToUpper(s)
	default:
		return s
	}
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
