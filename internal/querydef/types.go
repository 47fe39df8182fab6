package querydef

import (
	"fmt"
	"strings"
)

// Action is the kind of statement a definition executes.
type Action string

const (
	ActionFind   Action = "FIND"
	ActionCount  Action = "COUNT"
	ActionExists Action = "EXISTS"
)

// Operation is a comparison supported by the condition grammar.
type Operation string

const (
	OpEqual              Operation = "EQUAL"
	OpNotEqual           Operation = "NOT_EQUAL"
	OpGreaterThan        Operation = "GREATER_THAN"
	OpGreaterThanOrEqual Operation = "GREATER_THAN_OR_EQUAL"
	OpLessThan           Operation = "LESS_THAN"
	OpLessThanOrEqual    Operation = "LESS_THAN_OR_EQUAL"
	OpLike               Operation = "LIKE"
	OpNotLike            Operation = "NOT_LIKE"
	OpIn                 Operation = "IN"
	OpNotIn              Operation = "NOT_IN"
	OpIsNull             Operation = "IS_NULL"
	OpIsNotNull          Operation = "IS_NOT_NULL"
)

// operatorTokens maps every accepted operator spelling to its Operation.
// Spellings are lower case with single spaces.
var operatorTokens = map[string]Operation{
	"=":           OpEqual,
	"==":          OpEqual,
	"!=":          OpNotEqual,
	"<>":          OpNotEqual,
	">":           OpGreaterThan,
	">=":          OpGreaterThanOrEqual,
	"<":           OpLessThan,
	"<=":          OpLessThanOrEqual,
	"like":        OpLike,
	"not like":    OpNotLike,
	"in":          OpIn,
	"not in":      OpNotIn,
	"is null":     OpIsNull,
	"is not null": OpIsNotNull,
}

// ParseOperation resolves an operator token such as "not  LIKE" or "<>".
// Whitespace inside multi-word operators is collapsed before lookup.
func ParseOperation(token string) (Operation, error) {
	key := strings.ToLower(strings.Join(strings.Fields(token), " "))
	op, ok := operatorTokens[key]
	if !ok {
		return "", fmt.Errorf("unknown operator: %q", token)
	}
	return op, nil
}

// ExpectsValue reports whether the operation compares against a value.
// Null checks are the only operations without one.
func (o Operation) ExpectsValue() bool {
	return o != OpIsNull && o != OpIsNotNull
}

// IsOrdering reports whether the operation requires a comparable attribute.
func (o Operation) IsOrdering() bool {
	switch o {
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return true
	}
	return false
}

// IsMembership reports whether the operation expects a collection value.
func (o Operation) IsMembership() bool {
	return o == OpIn || o == OpNotIn
}

// CaseFunction is the case-folding function wrapped around one side of a
// comparison.
type CaseFunction string

const (
	CaseNone  CaseFunction = ""
	CaseLower CaseFunction = "LOWER"
	CaseUpper CaseFunction = "UPPER"
)

// ParseCaseFunction maps "lower"/"upper" (any case) to a CaseFunction.
// Anything else is CaseNone.
func ParseCaseFunction(name string) CaseFunction {
	switch strings.ToLower(name) {
	case "lower":
		return CaseLower
	case "upper":
		return CaseUpper
	default:
		return CaseNone
	}
}

// Wildcard wraps a bound LIKE value in % markers.
type Wildcard string

const (
	WildcardNone     Wildcard = ""
	WildcardContains Wildcard = "contains" // %v%
	WildcardPrefix   Wildcard = "prefix"   // v%
	WildcardSuffix   Wildcard = "suffix"   // %v
)

// Apply wraps s according to the wildcard mode.
func (w Wildcard) Apply(s string) string {
	switch w {
	case WildcardContains:
		return "%" + s + "%"
	case WildcardPrefix:
		return s + "%"
	case WildcardSuffix:
		return "%" + s
	default:
		return s
	}
}

// Connector records how a condition attaches to the one before it.
type Connector string

const (
	ConnectorAnd Connector = "AND"
	ConnectorOr  Connector = "OR"
)

// MethodRef identifies the declaring storage method.
type MethodRef struct {
	Owner string // storage name, e.g. "UserStorage"
	Name  string // method name, e.g. "findByUsername"
}

// String returns "Owner.Name".
func (m MethodRef) String() string {
	if m.Owner == "" {
		return m.Name
	}
	return m.Owner + "." + m.Name
}

// AttributePath is a normalized reference to an entity property.
//
// Name is either a simple property ("createdAt"), an alias-qualified
// property ("u.createdAt") when the prefix is a declared alias, or a dotted
// relationship path ("profile.country").
type AttributePath struct {
	Raw  string       // text as written, e.g. "lower(u.user_name)"
	Name string       // normalized path, e.g. "u.userName"
	Case CaseFunction // case function wrapped around the reference
}

// Segments splits Name on dots.
func (p AttributePath) Segments() []string {
	return strings.Split(p.Name, ".")
}

// Condition is one parsed comparison of a where clause.
type Condition struct {
	Raw        string        // matched fragment, for diagnostics
	Attribute  AttributePath // left-hand side
	Operation  Operation
	Value      Substitution // SubstitutionNone for null checks
	ValueCase  CaseFunction // case function wrapped around the value
	Wildcard   Wildcard     // pattern wrapping applied to a LIKE value
	IgnoreCase bool         // both sides wrapped in the same case function
	Connector  Connector    // attachment to the previous condition
}

// Order is one sort key.
type Order struct {
	Property   string
	Descending bool
}

// JoinKind is the join type recorded for an alias.
type JoinKind string

const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
	JoinRight JoinKind = "RIGHT"
)

// ParseJoinKind maps a join keyword to a supported JoinKind.
// FULL folds to LEFT and CROSS folds to INNER; an empty keyword is INNER.
func ParseJoinKind(keyword string) JoinKind {
	switch strings.ToLower(strings.TrimSpace(keyword)) {
	case "left":
		return JoinLeft
	case "right":
		return JoinRight
	case "full":
		return JoinLeft
	default:
		return JoinInner
	}
}

// Join binds an alias to a relationship path such as "u.profile".
type Join struct {
	Kind  JoinKind
	Path  string
	Alias string
}

// ReturnKind is the shape of rows a definition produces.
type ReturnKind string

const (
	ReturnEntity     ReturnKind = "entity"
	ReturnProjection ReturnKind = "projection"
	ReturnTuple      ReturnKind = "tuple"
)

// ReturnType describes the projection of a definition.
// Name is the entity or projection name; Columns lists the selected
// attributes for projections and tuples (empty when unknown, e.g. native).
type ReturnType struct {
	Kind    ReturnKind
	Name    string
	Columns []AttributePath
}

// Diagnostic is a non-fatal note recorded while parsing.
type Diagnostic struct {
	Fragment string
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %q", d.Message, d.Fragment)
}
