package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/roach88/dynquery/internal/attribute"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/schema"
)

var (
	// derivedNamePattern splits a method name into verb and remainder,
	// e.g. findFirstByEnabledTrue → find, FirstByEnabledTrue.
	derivedNamePattern = regexp.MustCompile(`^(find|read|get|query|search|stream|count|exists)([A-Z0-9_]\w*)?$`)

	// derivedLimitPattern matches First, First3, Top, Top10 in the subject.
	derivedLimitPattern = regexp.MustCompile(`(?:First|Top)(\d*)`)
)

// derivedOperator maps a predicate keyword suffix to a comparison.
type derivedOperator struct {
	suffix   string
	op       querydef.Operation
	literal  querydef.Literal
	wildcard querydef.Wildcard
}

// derivedOperators is ordered so longer keywords are tried before their
// own suffixes (IsNotNull before NotNull before Null).
var derivedOperators = []derivedOperator{
	{suffix: "IsNotNull", op: querydef.OpIsNotNull},
	{suffix: "NotNull", op: querydef.OpIsNotNull},
	{suffix: "IsNull", op: querydef.OpIsNull},
	{suffix: "Null", op: querydef.OpIsNull},
	{suffix: "IsNotIn", op: querydef.OpNotIn},
	{suffix: "NotIn", op: querydef.OpNotIn},
	{suffix: "IsIn", op: querydef.OpIn},
	{suffix: "In", op: querydef.OpIn},
	{suffix: "IsNotLike", op: querydef.OpNotLike},
	{suffix: "NotLike", op: querydef.OpNotLike},
	{suffix: "IsLike", op: querydef.OpLike},
	{suffix: "Like", op: querydef.OpLike},
	{suffix: "NotContaining", op: querydef.OpNotLike, wildcard: querydef.WildcardContains},
	{suffix: "IsContaining", op: querydef.OpLike, wildcard: querydef.WildcardContains},
	{suffix: "Containing", op: querydef.OpLike, wildcard: querydef.WildcardContains},
	{suffix: "Contains", op: querydef.OpLike, wildcard: querydef.WildcardContains},
	{suffix: "IsStartingWith", op: querydef.OpLike, wildcard: querydef.WildcardPrefix},
	{suffix: "StartingWith", op: querydef.OpLike, wildcard: querydef.WildcardPrefix},
	{suffix: "StartsWith", op: querydef.OpLike, wildcard: querydef.WildcardPrefix},
	{suffix: "IsEndingWith", op: querydef.OpLike, wildcard: querydef.WildcardSuffix},
	{suffix: "EndingWith", op: querydef.OpLike, wildcard: querydef.WildcardSuffix},
	{suffix: "EndsWith", op: querydef.OpLike, wildcard: querydef.WildcardSuffix},
	{suffix: "IsGreaterThanEqual", op: querydef.OpGreaterThanOrEqual},
	{suffix: "GreaterThanEqual", op: querydef.OpGreaterThanOrEqual},
	{suffix: "IsGreaterThan", op: querydef.OpGreaterThan},
	{suffix: "GreaterThan", op: querydef.OpGreaterThan},
	{suffix: "IsLessThanEqual", op: querydef.OpLessThanOrEqual},
	{suffix: "LessThanEqual", op: querydef.OpLessThanOrEqual},
	{suffix: "IsLessThan", op: querydef.OpLessThan},
	{suffix: "LessThan", op: querydef.OpLessThan},
	{suffix: "IsAfter", op: querydef.OpGreaterThan},
	{suffix: "After", op: querydef.OpGreaterThan},
	{suffix: "IsBefore", op: querydef.OpLessThan},
	{suffix: "Before", op: querydef.OpLessThan},
	{suffix: "IsTrue", op: querydef.OpEqual, literal: querydef.LitBool(true)},
	{suffix: "True", op: querydef.OpEqual, literal: querydef.LitBool(true)},
	{suffix: "IsFalse", op: querydef.OpEqual, literal: querydef.LitBool(false)},
	{suffix: "False", op: querydef.OpEqual, literal: querydef.LitBool(false)},
	{suffix: "IsNot", op: querydef.OpNotEqual},
	{suffix: "Not", op: querydef.OpNotEqual},
	{suffix: "Equals", op: querydef.OpEqual},
	{suffix: "Is", op: querydef.OpEqual},
}

// Derived builds queries from method names such as
// findFirstByEnabledTrueOrderByCreatedAtDesc. Values bind positionally in
// the order predicates appear.
type Derived struct{}

func (*Derived) Name() string { return "derived" }

// Supports reports whether m has no query text.
func (*Derived) Supports(m schema.Method) bool {
	return !m.Native && strings.TrimSpace(m.Query) == ""
}

// Parse derives the definition of m from its name.
func (*Derived) Parse(m schema.Method, cat *schema.Catalog) (*querydef.Definition, error) {
	ref := m.Ref()
	entity, err := storageEntity(m, cat)
	if err != nil {
		return nil, err
	}

	match := derivedNamePattern.FindStringSubmatch(m.Name)
	if match == nil {
		return nil, querydef.NewSyntaxError(ref, m.Name, m.Name, "method name does not describe a query")
	}
	verb, rest := match[1], match[2]

	spec := querydef.Spec{
		Method: ref,
		Raw:    m.Name,
		Return: querydef.ReturnType{Kind: querydef.ReturnEntity, Name: entity.Name},
	}

	switch {
	case verb == "count":
		spec.Action = querydef.ActionCount
	case verb == "exists" || m.Returns.Boolean():
		spec.Action = querydef.ActionExists
	default:
		spec.Action = querydef.ActionFind
	}

	var orderPart string
	if i := strings.LastIndex(rest, "OrderBy"); i >= 0 {
		orderPart = rest[i+len("OrderBy"):]
		rest = rest[:i]
	}

	subject, predicate := rest, ""
	if i := strings.Index(rest, "By"); i >= 0 {
		subject, predicate = rest[:i], rest[i+len("By"):]
	}

	spec.Distinct = strings.Contains(subject, "Distinct")
	if lm := derivedLimitPattern.FindStringSubmatch(subject); lm != nil {
		n := 1
		if lm[1] != "" {
			var err error
			if n, err = strconv.Atoi(lm[1]); err != nil {
				return nil, querydef.NewSyntaxError(ref, m.Name, lm[0], "invalid limit value")
			}
		}
		spec.Limit = &n
	}

	if predicate != "" {
		if err := parseDerivedPredicate(&spec, predicate, entity, cat); err != nil {
			return nil, err
		}
	}

	if orderPart != "" {
		orders, err := parseDerivedOrders(orderPart, entity, cat)
		if err != nil {
			return nil, querydef.NewUnknownPropertyError(ref, m.Name, err.Error())
		}
		spec.Orders = orders
	}

	return finish(m, spec)
}

func parseDerivedPredicate(spec *querydef.Spec, predicate string, entity *schema.Entity, cat *schema.Catalog) error {
	allIgnoreCase := false
	if p, ok := strings.CutSuffix(predicate, "AllIgnoreCase"); ok {
		predicate, allIgnoreCase = p, true
	} else if p, ok := strings.CutSuffix(predicate, "AllIgnoringCase"); ok {
		predicate, allIgnoreCase = p, true
	}

	parts, connectors := splitDerived(predicate)
	positional := 0
	for i, part := range parts {
		ignoreCase := allIgnoreCase
		text := part
		if p, ok := strings.CutSuffix(text, "IgnoreCase"); ok {
			text, ignoreCase = p, true
		} else if p, ok := strings.CutSuffix(text, "IgnoringCase"); ok {
			text, ignoreCase = p, true
		}

		cond, ok := matchDerivedCondition(text, entity, cat)
		if !ok {
			return querydef.NewUnknownPropertyError(spec.Method, spec.Raw, part)
		}
		cond.Raw = part
		cond.Connector = connectors[i]

		if ignoreCase {
			cond.Attribute.Case = querydef.CaseLower
			cond.ValueCase = querydef.CaseLower
			cond.IgnoreCase = true
		}

		if cond.Operation.ExpectsValue() && cond.Value.Kind == querydef.SubstitutionNone {
			cond.Value = querydef.Positional(positional, fmt.Sprintf("?%d", positional+1))
			positional++
		}
		if cond.Value.Kind != querydef.SubstitutionNone {
			spec.Substitutions = append(spec.Substitutions, cond.Value)
		}
		spec.Conditions = append(spec.Conditions, cond)
	}
	return nil
}

// matchDerivedCondition resolves one predicate part. A keyword suffix only
// counts when the text before it names a property, so findByDomain is an
// equality on domain rather than an IN on "doma".
func matchDerivedCondition(text string, entity *schema.Entity, cat *schema.Catalog) (querydef.Condition, bool) {
	for _, d := range derivedOperators {
		prop, ok := strings.CutSuffix(text, d.suffix)
		if !ok || prop == "" {
			continue
		}
		path, ok := resolveDerivedProperty(prop, entity, cat)
		if !ok {
			continue
		}
		cond := querydef.Condition{
			Attribute: querydef.AttributePath{Raw: prop, Name: path},
			Operation: d.op,
			Wildcard:  d.wildcard,
		}
		if d.literal != nil {
			cond.Value = querydef.Constant(d.literal, strings.ToLower(d.suffix))
		}
		return cond, true
	}

	path, ok := resolveDerivedProperty(text, entity, cat)
	if !ok {
		return querydef.Condition{}, false
	}
	return querydef.Condition{
		Attribute: querydef.AttributePath{Raw: text, Name: path},
		Operation: querydef.OpEqual,
	}, true
}

// resolveDerivedProperty maps a capitalized property reference to a
// property path, walking relations when the name is a concatenation such
// as ProfileCountry (profile.country). An underscore forces a split.
func resolveDerivedProperty(name string, entity *schema.Entity, cat *schema.Catalog) (string, bool) {
	if head, tail, ok := strings.Cut(name, "_"); ok {
		rel, ok := entity.Relation(attribute.Normalize(head))
		if !ok {
			return "", false
		}
		target, ok := cat.Entity(rel.Entity)
		if !ok {
			return "", false
		}
		rest, ok := resolveDerivedProperty(tail, target, cat)
		if !ok {
			return "", false
		}
		return rel.Name + "." + rest, true
	}

	prop := attribute.Normalize(name)
	if _, ok := entity.Field(prop); ok {
		return prop, true
	}

	// Try each hump boundary, longest relation name first.
	for i := len(name) - 1; i > 0; i-- {
		if !unicode.IsUpper(rune(name[i])) {
			continue
		}
		rel, ok := entity.Relation(attribute.Normalize(name[:i]))
		if !ok {
			continue
		}
		target, ok := cat.Entity(rel.Entity)
		if !ok {
			continue
		}
		if rest, ok := resolveDerivedProperty(name[i:], target, cat); ok {
			return rel.Name + "." + rest, true
		}
	}
	return "", false
}

// splitDerived splits a predicate on And/Or keywords that sit on hump
// boundaries. connectors[i] attaches parts[i] to the part before it.
func splitDerived(predicate string) ([]string, []querydef.Connector) {
	var parts []string
	connectors := []querydef.Connector{querydef.ConnectorAnd}
	start := 0
	for i := 1; i < len(predicate); i++ {
		var kw string
		var conn querydef.Connector
		switch {
		case strings.HasPrefix(predicate[i:], "And"):
			kw, conn = "And", querydef.ConnectorAnd
		case strings.HasPrefix(predicate[i:], "Or"):
			kw, conn = "Or", querydef.ConnectorOr
		default:
			continue
		}
		next := i + len(kw)
		if next >= len(predicate) || !isUpperByte(predicate[next]) {
			continue
		}
		parts = append(parts, predicate[start:i])
		connectors = append(connectors, conn)
		start = next
		i = next - 1
	}
	parts = append(parts, predicate[start:])
	return parts, connectors
}

// parseDerivedOrders parses "CreatedAtDesc", "UsernameAscCreatedAtDesc".
func parseDerivedOrders(s string, entity *schema.Entity, cat *schema.Catalog) ([]querydef.Order, error) {
	var orders []querydef.Order
	for s != "" {
		cut, width, desc := -1, 0, false
		for i := 1; i < len(s); i++ {
			if strings.HasPrefix(s[i:], "Desc") && atBoundary(s, i+4) {
				cut, width, desc = i, 4, true
				break
			}
			if strings.HasPrefix(s[i:], "Asc") && atBoundary(s, i+3) {
				cut, width = i, 3
				break
			}
		}

		prop := s
		if cut >= 0 {
			prop, s = s[:cut], s[cut+width:]
		} else {
			s = ""
		}

		path, ok := resolveDerivedProperty(prop, entity, cat)
		if !ok {
			return nil, fmt.Errorf("%s", prop)
		}
		orders = append(orders, querydef.Order{Property: path, Descending: desc})
	}
	return orders, nil
}

func atBoundary(s string, i int) bool {
	return i >= len(s) || isUpperByte(s[i])
}

func isUpperByte(c byte) bool {
	return c >= 'A' && c <= 'Z'
}
