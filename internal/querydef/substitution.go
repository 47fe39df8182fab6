package querydef

import "fmt"

// SubstitutionKind is the value source of a condition.
type SubstitutionKind string

const (
	SubstitutionNone       SubstitutionKind = ""
	SubstitutionNamed      SubstitutionKind = "named"
	SubstitutionPositional SubstitutionKind = "positional"
	SubstitutionLiteral    SubstitutionKind = "literal"
)

// Substitution says where a condition's value comes from at call time.
//
// Exactly one source is set, selected by Kind: Key for named parameters,
// Index (zero-based) for positional parameters, Literal for inline constants.
type Substitution struct {
	Kind    SubstitutionKind
	Key     string
	Index   int
	Literal Literal
	Token   string // token as written, e.g. ":username" or "?2"
}

// Named returns a substitution keyed by parameter name.
func Named(key, token string) Substitution {
	return Substitution{Kind: SubstitutionNamed, Key: key, Token: token}
}

// Positional returns a substitution keyed by zero-based parameter index.
func Positional(index int, token string) Substitution {
	return Substitution{Kind: SubstitutionPositional, Index: index, Token: token}
}

// Constant returns a substitution carrying an inline literal.
func Constant(lit Literal, token string) Substitution {
	return Substitution{Kind: SubstitutionLiteral, Literal: lit, Token: token}
}

// IsParameter reports whether the value is supplied by the caller.
func (s Substitution) IsParameter() bool {
	return s.Kind == SubstitutionNamed || s.Kind == SubstitutionPositional
}

// String renders the substitution for diagnostics.
func (s Substitution) String() string {
	switch s.Kind {
	case SubstitutionNamed:
		return ":" + s.Key
	case SubstitutionPositional:
		return fmt.Sprintf("?%d", s.Index+1)
	case SubstitutionLiteral:
		return s.Token
	default:
		return "<none>"
	}
}
