package querydef

import "slices"

// Spec carries the fields of a Definition under construction.
// Parsers fill a Spec and call New; the Definition copies everything.
type Spec struct {
	Method        MethodRef
	Raw           string
	Native        bool
	Action        Action
	Distinct      bool
	Return        ReturnType
	RootAlias     string
	Joins         []Join
	Conditions    []Condition
	Substitutions []Substitution
	Orders        []Order
	Limit         *int
	Diagnostics   []Diagnostic
}

// Definition is the immutable parsed form of one storage method's query.
type Definition struct {
	spec Spec
}

// New builds a Definition from spec. Slices are copied so later changes to
// spec are not observed.
func New(spec Spec) *Definition {
	s := spec
	s.Joins = slices.Clone(spec.Joins)
	s.Conditions = slices.Clone(spec.Conditions)
	s.Substitutions = slices.Clone(spec.Substitutions)
	s.Orders = slices.Clone(spec.Orders)
	s.Diagnostics = slices.Clone(spec.Diagnostics)
	s.Return.Columns = slices.Clone(spec.Return.Columns)
	if spec.Limit != nil {
		n := *spec.Limit
		s.Limit = &n
	}
	if s.Action == "" {
		s.Action = ActionFind
	}
	return &Definition{spec: s}
}

// Method returns the declaring method.
func (d *Definition) Method() MethodRef { return d.spec.Method }

// Raw returns the query text as declared.
func (d *Definition) Raw() string { return d.spec.Raw }

// Native reports whether the query text is passed to the backend verbatim.
func (d *Definition) Native() bool { return d.spec.Native }

// Action returns FIND, COUNT, or EXISTS.
func (d *Definition) Action() Action { return d.spec.Action }

// Distinct reports whether duplicate rows are collapsed.
func (d *Definition) Distinct() bool { return d.spec.Distinct }

// ReturnType returns the projection of the definition.
func (d *Definition) ReturnType() ReturnType {
	rt := d.spec.Return
	rt.Columns = slices.Clone(rt.Columns)
	return rt
}

// RootAlias returns the alias of the root entity, or "" if none was declared.
func (d *Definition) RootAlias() string { return d.spec.RootAlias }

// Joins returns the declared joins in source order.
func (d *Definition) Joins() []Join { return slices.Clone(d.spec.Joins) }

// Conditions returns the where-clause conditions in source order.
func (d *Definition) Conditions() []Condition { return slices.Clone(d.spec.Conditions) }

// Substitutions returns every substitution in source order, one per
// placeholder occurrence.
func (d *Definition) Substitutions() []Substitution { return slices.Clone(d.spec.Substitutions) }

// Orders returns the sort keys in source order.
func (d *Definition) Orders() []Order { return slices.Clone(d.spec.Orders) }

// Limit returns the declared row limit.
func (d *Definition) Limit() (int, bool) {
	if d.spec.Limit == nil {
		return 0, false
	}
	return *d.spec.Limit, true
}

// Diagnostics returns the non-fatal notes recorded while parsing.
func (d *Definition) Diagnostics() []Diagnostic { return slices.Clone(d.spec.Diagnostics) }

// Spec returns a copy of the fields the definition was built from.
func (d *Definition) Spec() Spec {
	return New(d.spec).spec
}
