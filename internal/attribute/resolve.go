// Package attribute normalizes raw field references from query text into
// canonical property paths.
package attribute

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/dynquery/internal/querydef"
)

var (
	// caseFnPattern matches lower(expr) / upper(expr) wrapping a whole token.
	caseFnPattern = regexp.MustCompile(`(?is)^\s*(lower|upper)\s*\(\s*(.*?)\s*\)\s*$`)

	// aliasPattern matches "<from|join> <entityRef> [as] <alias>".
	aliasPattern = regexp.MustCompile(`(?i)\b(from|join)\s+[\w.]+\s+(?:as\s+)?(\w+)`)
)

// reservedWords can follow an entity reference but are never aliases.
var reservedWords = map[string]bool{
	"where": true, "order": true, "limit": true, "join": true,
	"inner": true, "left": true, "right": true, "full": true,
	"cross": true, "outer": true, "on": true, "group": true,
	"and": true, "or": true, "as": true,
}

// Resolver turns raw field tokens into AttributePaths, consulting the set
// of aliases declared in the query. A Resolver is immutable.
type Resolver struct {
	aliases map[string]bool
}

// NewResolver returns a resolver that recognizes the given aliases.
func NewResolver(aliases ...string) *Resolver {
	r := &Resolver{aliases: make(map[string]bool, len(aliases))}
	for _, a := range aliases {
		if a != "" {
			r.aliases[a] = true
		}
	}
	return r
}

// ForQuery extracts the aliases declared in query and returns a resolver
// for them.
func ForQuery(query string) *Resolver {
	return NewResolver(ExtractAliases(query)...)
}

// ExtractAliases scans every from/join clause of query for
// "<entityRef> [as] <alias>" and returns the aliases in source order.
// Keywords that may follow an entity reference (where, order, join, ...)
// are not aliases.
func ExtractAliases(query string) []string {
	var out []string
	for _, m := range aliasPattern.FindAllStringSubmatch(query, -1) {
		alias := m[2]
		if reservedWords[strings.ToLower(alias)] || slices.Contains(out, alias) {
			continue
		}
		out = append(out, alias)
	}
	return out
}

// HasAlias reports whether name is a declared alias.
func (r *Resolver) HasAlias(name string) bool {
	return r.aliases[name]
}

// Aliases returns the declared aliases in sorted order.
func (r *Resolver) Aliases() []string {
	out := make([]string, 0, len(r.aliases))
	for a := range r.aliases {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// Resolve normalizes a raw field token.
//
// A lower(...) or upper(...) wrapper is removed and recorded. When the
// inner expression is dotted and its first segment is a declared alias,
// the alias is kept verbatim; every other segment is normalized with
// Normalize.
func (r *Resolver) Resolve(token string) querydef.AttributePath {
	raw := strings.TrimSpace(token)
	inner, fn := Unwrap(raw)

	segments := strings.Split(inner, ".")
	start := 0
	if len(segments) > 1 && r.HasAlias(segments[0]) {
		start = 1
	}
	for i := start; i < len(segments); i++ {
		segments[i] = Normalize(segments[i])
	}

	return querydef.AttributePath{
		Raw:  raw,
		Name: strings.Join(segments, "."),
		Case: fn,
	}
}

// Unwrap strips a lower(...)/upper(...) wrapper from token.
// Tokens without a wrapper are returned trimmed with CaseNone.
func Unwrap(token string) (string, querydef.CaseFunction) {
	if m := caseFnPattern.FindStringSubmatch(token); m != nil {
		return m[2], querydef.ParseCaseFunction(m[1])
	}
	return strings.TrimSpace(token), querydef.CaseNone
}

// IgnoreCase reports whether a comparison is case-insensitive: both sides
// wrapped in the same case function.
func IgnoreCase(attr, value querydef.CaseFunction) bool {
	return attr != querydef.CaseNone && attr == value
}

// Normalize converts a property name to its canonical form.
//
// Names containing underscores are converted from snake_case to camelCase;
// any other name has its first character lower-cased. Normalize is
// idempotent.
func Normalize(name string) string {
	if name == "" {
		return name
	}
	if strings.Contains(name, "_") {
		return snakeToCamel(name)
	}
	return lowerFirst(name)
}

func snakeToCamel(name string) string {
	var b strings.Builder
	first := true
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		part = strings.ToLower(part)
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		r, size := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(part[size:])
	}
	return b.String()
}

func lowerFirst(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

// SnakeCase converts a camelCase property name to a snake_case column
// name. Runs of capitals are kept together: "userID" becomes "user_id".
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1]) && runes[i-1] != '_'
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
