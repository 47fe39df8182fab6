package queryir

import (
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/schema"
)

// Column is an attribute path resolved to a table alias and column.
type Column struct {
	Table string           // SQL alias of the owning table
	Name  string           // column name
	Type  schema.FieldType // declared field type
	Path  string           // property path the column was resolved from
}

// Ref returns the qualified column reference, e.g. "t0.created_at".
func (c Column) Ref() string {
	return c.Table + "." + c.Name
}

// JoinClause joins one table through a relation: Left = Right.
type JoinClause struct {
	Kind  querydef.JoinKind
	Table string
	Alias string
	Left  Column // column on the side already joined
	Right Column // column on the joined table
}

// Output is one selected column and the name it is reported under.
type Output struct {
	Name   string
	Column Column
}

// OrderBy is one resolved sort key.
type OrderBy struct {
	Column     Column
	Descending bool
}

// Condition is a parsed condition with its resolved column.
type Condition struct {
	querydef.Condition
	Column Column
}

// Operand is the left-hand side of a predicate: a column, optionally cast
// to text and wrapped in a case function.
type Operand struct {
	Column Column
	Case   querydef.CaseFunction
	Text   bool
}

// Predicate is a bound filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Comparison is a binary comparison operator.
type Comparison string

const (
	CmpEqual              Comparison = "="
	CmpNotEqual           Comparison = "<>"
	CmpGreaterThan        Comparison = ">"
	CmpGreaterThanOrEqual Comparison = ">="
	CmpLessThan           Comparison = "<"
	CmpLessThanOrEqual    Comparison = "<="
)

// Compare is Left <op> Value. Value is never nil; null comparisons bind to
// Null.
type Compare struct {
	Left  Operand
	Op    Comparison
	Value any
}

// Like is Left [NOT] LIKE Pattern. Wildcards are already applied.
type Like struct {
	Left    Operand
	Pattern string
	Negated bool
}

// In is Left [NOT] IN (Values...). An empty IN matches nothing; an empty
// NOT IN matches everything.
type In struct {
	Left    Operand
	Values  []any
	Negated bool
}

// Null is Left IS [NOT] NULL.
type Null struct {
	Left    Operand
	Negated bool
}

// And holds when every predicate holds.
type And struct {
	Predicates []Predicate
}

// Or holds when any predicate holds.
type Or struct {
	Predicates []Predicate
}

func (Compare) predicateNode() {}
func (Like) predicateNode() {}
func (In) predicateNode() {}
func (Null) predicateNode() {}
func (And) predicateNode() {}
func (Or) predicateNode() {}

// Select is a plan bound to one call's arguments. It is built per call and
// discarded afterwards.
type Select struct {
	Table    string
	Alias    string
	Key      Column
	Distinct bool
	Outputs  []Output
	Joins    []JoinClause
	Filter   Predicate // nil matches every row
	Orders   []OrderBy
	Limit    int
	Limited  bool
}
