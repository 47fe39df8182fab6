package querydef

import (
	"fmt"
	"strconv"
	"strings"
)

// Literal is a sealed interface for constants written inline in query text.
// Only LitNull, LitString, LitInt, LitFloat, LitBool, and LitList implement it.
type Literal interface {
	literal()

	// Value returns the Go value bound to the driver.
	Value() any
}

// LitNull is the null keyword.
type LitNull struct{}

func (LitNull) literal() {}
func (LitNull) Value() any { return nil }
func (LitNull) String() string { return "null" }

// LitString is a single-quoted string constant.
type LitString string

func (LitString) literal() {}
func (s LitString) Value() any { return string(s) }

// LitInt is an integer constant.
type LitInt int64

func (LitInt) literal() {}
func (n LitInt) Value() any { return int64(n) }

// LitFloat is a decimal constant.
type LitFloat float64

func (LitFloat) literal() {}
func (f LitFloat) Value() any { return float64(f) }

// LitBool is true or false.
type LitBool bool

func (LitBool) literal() {}
func (b LitBool) Value() any { return bool(b) }

// LitList is a parenthesized list of constants, e.g. ('a', 'b').
type LitList []Literal

func (LitList) literal() {}

// Value returns the element values as []any.
func (l LitList) Value() any {
	out := make([]any, len(l))
	for i, elem := range l {
		out[i] = elem.Value()
	}
	return out
}

// ParseLiteral converts a single constant token into a Literal.
// Accepted forms: 'quoted', true, false, null, integers, and decimals.
// Keywords are case-insensitive. Doubled quotes inside a string are
// unescaped ('it''s' is it's).
func ParseLiteral(token string) (Literal, error) {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return nil, fmt.Errorf("empty literal")
	}

	if len(tok) >= 2 && tok[0] == '\'' && tok[len(tok)-1] == '\'' {
		return LitString(strings.ReplaceAll(tok[1:len(tok)-1], "''", "'")), nil
	}

	switch strings.ToLower(tok) {
	case "true":
		return LitBool(true), nil
	case "false":
		return LitBool(false), nil
	case "null":
		return LitNull{}, nil
	}

	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return LitInt(n), nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return LitFloat(f), nil
	}
	return nil, fmt.Errorf("not a literal: %q", tok)
}

// ParseLiteralList parses the inside of a parenthesized list such as
// "'a', 'b'" or "1, 2, 3". Commas inside quotes are respected.
func ParseLiteralList(inner string) (LitList, error) {
	parts := splitOutsideQuotes(inner, ',')
	list := make(LitList, 0, len(parts))
	for i, part := range parts {
		lit, err := ParseLiteral(part)
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		if _, nested := lit.(LitList); nested {
			return nil, fmt.Errorf("list element %d: nested lists are not supported", i)
		}
		list = append(list, lit)
	}
	return list, nil
}

// splitOutsideQuotes splits s on sep, ignoring separators inside single
// quotes.
func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
