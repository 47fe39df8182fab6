// Package parser turns declared storage methods into query definitions.
//
// Three strategies exist and are tried in a fixed order by Chain:
//
//	Native      methods flagged native; text passes through verbatim
//	Structured  from/find/select text in the restricted query grammar
//	Derived     methods without text; the query comes from the method name
//
// Parsing is a pure function of the method and catalog. Pattern tables are
// package-level and compiled once.
package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/roach88/dynquery/internal/binding"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/schema"
)

// Strategy parses the methods it supports.
type Strategy interface {
	// Name identifies the strategy in logs and CLI output.
	Name() string

	// Supports reports whether this strategy handles m.
	Supports(m schema.Method) bool

	// Parse produces the definition of m. Errors are QueryErrors.
	Parse(m schema.Method, cat *schema.Catalog) (*querydef.Definition, error)
}

// FallbackPolicy decides what happens to a where-clause condition outside
// the supported grammar.
type FallbackPolicy string

const (
	// FallbackWarn keeps the condition's placeholders bound, drops its
	// predicate, logs a warning, and records a Diagnostic.
	FallbackWarn FallbackPolicy = "warn"

	// FallbackStrict rejects the query with a SyntaxError.
	FallbackStrict FallbackPolicy = "strict"
)

// ParseFallbackPolicy validates a configured policy name.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case FallbackWarn, "":
		return FallbackWarn, nil
	case FallbackStrict:
		return FallbackStrict, nil
	default:
		return "", fmt.Errorf("invalid fallback policy %q: must be warn or strict", s)
	}
}

// Options configures the strategies built by NewChain.
type Options struct {
	Fallback FallbackPolicy
	Logger   *slog.Logger // nil uses slog.Default()
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Chain tries each strategy in order and uses the first that supports a
// method.
type Chain struct {
	strategies []Strategy
}

// NewChain returns the standard chain: native, structured, derived.
func NewChain(opts Options) *Chain {
	return &Chain{strategies: []Strategy{
		&Native{},
		&Structured{opts: opts},
		&Derived{},
	}}
}

// NewChainOf returns a chain over the given strategies, tried in order.
func NewChainOf(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Select returns the strategy that handles m.
func (c *Chain) Select(m schema.Method) (Strategy, bool) {
	for _, s := range c.strategies {
		if s.Supports(m) {
			return s, true
		}
	}
	return nil, false
}

// Parse parses m with the first supporting strategy.
func (c *Chain) Parse(m schema.Method, cat *schema.Catalog) (*querydef.Definition, error) {
	s, ok := c.Select(m)
	if !ok {
		return nil, querydef.NewSyntaxError(m.Ref(), m.Query, "", "no parser supports this query")
	}
	return s.Parse(m, cat)
}

var (
	// countPattern marks an aggregate select.
	countPattern = regexp.MustCompile(`(?i)\bcount\s*\(`)

	// limitPattern matches the limit keyword.
	limitPattern = regexp.MustCompile(`(?i)\blimit\b`)
)

// inferAction derives the action from the declared result kind: boolean
// results are EXISTS, numeric results over a count(...) are COUNT, and
// everything else is FIND.
func inferAction(m schema.Method, query string) querydef.Action {
	switch {
	case m.Returns.Boolean():
		return querydef.ActionExists
	case m.Returns.Numeric() && countPattern.MatchString(query):
		return querydef.ActionCount
	default:
		return querydef.ActionFind
	}
}

// storageEntity returns the entity the method's storage is declared over.
func storageEntity(m schema.Method, cat *schema.Catalog) (*schema.Entity, error) {
	s, ok := cat.Storage(m.Owner)
	if !ok {
		return nil, querydef.NewSyntaxError(m.Ref(), m.Query, m.Owner, "unknown storage")
	}
	e, ok := cat.Entity(s.Entity)
	if !ok {
		return nil, querydef.NewSyntaxError(m.Ref(), m.Query, s.Entity, "unknown storage entity")
	}
	return e, nil
}

// finish builds the definition and validates its bindings.
func finish(m schema.Method, spec querydef.Spec) (*querydef.Definition, error) {
	def := querydef.New(spec)
	if err := binding.Validate(m, def); err != nil {
		return nil, err
	}
	return def, nil
}
