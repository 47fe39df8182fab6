package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/dynquery/internal/attribute"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/schema"
)

var (
	structuredPrefixPattern = regexp.MustCompile(`(?i)^(from|find|select)\b`)
	wherePattern            = regexp.MustCompile(`(?i)\bwhere\b`)
	orderByPattern          = regexp.MustCompile(`(?i)\border\s+by\b`)
	distinctPattern         = regexp.MustCompile(`(?i)\bdistinct\b`)
	connectorPattern        = regexp.MustCompile(`(?i)^\s+(and|or)\s+`)

	// conditionPattern matches one whole condition:
	// <field | case(field)> <operator> [<value>]
	// Word operators need whitespace before them so they never split a
	// field name.
	conditionPattern = regexp.MustCompile(`(?i)^\s*` +
		`((?:lower|upper)\s*\(\s*[\w.]+\s*\)|[\w.]+)` +
		`(\s*(?:>=|<=|!=|<>|==|=|>|<)|\s+(?:not\s+like|not\s+in|is\s+not\s+null|is\s+null|like|in)\b)\s*` +
		`((?:lower|upper)\s*\([^)]*\)|:\w+|\?\d*|true|false|null|'(?:[^']|'')*'|-?\d+(?:\.\d+)?|\([^)]*\))?` +
		`\s*$`)

	// singlePlaceholderPattern matches a list body holding one placeholder,
	// e.g. the ?1 of "in (?1)".
	singlePlaceholderPattern = regexp.MustCompile(`^(:\w+|\?\d*)$`)

	fromPattern          = regexp.MustCompile(`(?i)^(?:select\b.*?\bfrom|from)\s+([\w.]+)(?:\s+(?:as\s+)?(\w+))?`)
	joinPattern          = regexp.MustCompile(`(?i)\b(?:(inner|left|right|full|cross)\s+)?(?:outer\s+)?join\s+([\w.]+)\s+(?:as\s+)?(\w+)`)
	selectNewPattern     = regexp.MustCompile(`(?i)^select\s+(?:distinct\s+)?new\s+([\w.]+)\s*\(([^)]*)\)`)
	selectColumnsPattern = regexp.MustCompile(`(?i)^select\s+(?:distinct\s+)?(.+?)\s+from\b`)
	columnRefPattern     = regexp.MustCompile(`^[\w.]+$`)
)

// errNoMatch marks a condition outside the supported grammar.
var errNoMatch = errors.New("condition outside supported grammar")

// Structured parses the restricted query grammar:
//
//	[select <projection> from <Entity> [alias] | from <Entity> [alias] | find]
//	[distinct] [join ...] [where <cond> (and|or <cond>)*]
//	[order by <prop> [asc|desc], ...] [limit <n>]
type Structured struct {
	opts Options
}

// NewStructured returns a structured parser with the given options.
func NewStructured(opts Options) *Structured {
	return &Structured{opts: opts}
}

func (*Structured) Name() string { return "structured" }

// Supports reports whether m carries from/find/select text that is not
// native and does not select *.
func (*Structured) Supports(m schema.Method) bool {
	q := strings.TrimSpace(m.Query)
	return !m.Native && structuredPrefixPattern.MatchString(q) && !selectStarPattern.MatchString(q)
}

// Parse parses m's query text.
func (s *Structured) Parse(m schema.Method, cat *schema.Catalog) (*querydef.Definition, error) {
	raw := strings.TrimSpace(m.Query)
	ref := m.Ref()

	entity, err := storageEntity(m, cat)
	if err != nil {
		return nil, err
	}

	sec, err := splitClauses(raw)
	if err != nil {
		return nil, querydef.NewSyntaxError(ref, raw, "", err.Error())
	}

	resolver := attribute.ForQuery(raw)
	spec := querydef.Spec{
		Method:   ref,
		Raw:      raw,
		Action:   inferAction(m, raw),
		Distinct: distinctPattern.MatchString(raw),
		Return:   querydef.ReturnType{Kind: querydef.ReturnEntity, Name: entity.Name},
	}

	if err := parseFrom(&spec, sec.prefix, entity, resolver); err != nil {
		return nil, err
	}
	if err := parseProjection(&spec, sec.prefix, cat, resolver); err != nil {
		return nil, err
	}

	if sec.hasWhere {
		if err := s.parseWhere(&spec, sec.where, resolver); err != nil {
			return nil, err
		}
	}

	if sec.hasOrder {
		orders, err := parseOrders(sec.order, resolver)
		if err != nil {
			return nil, querydef.NewSyntaxError(ref, raw, sec.order, err.Error())
		}
		spec.Orders = orders
	}

	if sec.hasLimit {
		n, err := parseLimit(sec.limit)
		if err != nil {
			return nil, querydef.NewSyntaxError(ref, raw, strings.TrimSpace(sec.limit), err.Error())
		}
		spec.Limit = &n
	}

	return finish(m, spec)
}

// clauses is a query partitioned at its where, order by, and limit
// keywords.
type clauses struct {
	prefix, where, order, limit  string
	hasWhere, hasOrder, hasLimit bool
}

// splitClauses locates the first where, the first order by, and the last
// limit outside quotes. A trailing semicolon is dropped. The where clause
// ends at whichever of order by and limit comes first. A limit that does
// not follow the other clauses is not treated as a limit.
func splitClauses(q string) (clauses, error) {
	var c clauses
	q = strings.TrimSuffix(strings.TrimSpace(q), ";")
	end := len(q)

	whereLoc := firstOutsideQuotes(q, wherePattern)
	orderLoc := firstOutsideQuotes(q, orderByPattern)
	limitLoc := lastOutsideQuotes(q, limitPattern)

	if whereLoc != nil && orderLoc != nil && orderLoc[0] < whereLoc[0] {
		return c, fmt.Errorf("where clause must precede order by")
	}
	if limitLoc != nil && ((whereLoc != nil && limitLoc[0] < whereLoc[1]) || (orderLoc != nil && limitLoc[0] < orderLoc[1])) {
		limitLoc = nil
	}

	prefixEnd := end
	for _, loc := range [][]int{whereLoc, orderLoc, limitLoc} {
		if loc != nil && loc[0] < prefixEnd {
			prefixEnd = loc[0]
		}
	}
	c.prefix = strings.TrimSpace(q[:prefixEnd])

	if whereLoc != nil {
		whereEnd := end
		if orderLoc != nil {
			whereEnd = orderLoc[0]
		} else if limitLoc != nil {
			whereEnd = limitLoc[0]
		}
		c.where = strings.TrimSpace(q[whereLoc[1]:whereEnd])
		c.hasWhere = true
	}
	if orderLoc != nil {
		orderEnd := end
		if limitLoc != nil {
			orderEnd = limitLoc[0]
		}
		c.order = strings.TrimSpace(q[orderLoc[1]:orderEnd])
		c.hasOrder = true
	}
	if limitLoc != nil {
		c.limit = q[limitLoc[1]:]
		c.hasLimit = true
	}
	return c, nil
}

func firstOutsideQuotes(q string, re *regexp.Regexp) []int {
	for _, loc := range re.FindAllStringIndex(q, -1) {
		if !insideQuotes(q, loc[0]) {
			return loc
		}
	}
	return nil
}

func lastOutsideQuotes(q string, re *regexp.Regexp) []int {
	var last []int
	for _, loc := range re.FindAllStringIndex(q, -1) {
		if !insideQuotes(q, loc[0]) {
			last = loc
		}
	}
	return last
}

// insideQuotes reports whether pos falls inside a single-quoted string.
func insideQuotes(q string, pos int) bool {
	return strings.Count(q[:pos], "'")%2 == 1
}

// parseFrom records the root alias and declared joins, and checks that the
// from clause names the storage entity (by name or table).
func parseFrom(spec *querydef.Spec, prefix string, entity *schema.Entity, resolver *attribute.Resolver) error {
	if m := fromPattern.FindStringSubmatch(prefix); m != nil {
		ref := m[1]
		if i := strings.LastIndex(ref, "."); i >= 0 {
			ref = ref[i+1:]
		}
		if ref != entity.Name && !strings.EqualFold(ref, entity.Table) {
			return querydef.NewSyntaxError(spec.Method, spec.Raw, m[1],
				fmt.Sprintf("query entity does not match storage entity %s", entity.Name))
		}
		if resolver.HasAlias(m[2]) {
			spec.RootAlias = m[2]
		}
	}

	for _, m := range joinPattern.FindAllStringSubmatch(prefix, -1) {
		if !resolver.HasAlias(m[3]) {
			return querydef.NewSyntaxError(spec.Method, spec.Raw, m[0], "join requires an alias")
		}
		spec.Joins = append(spec.Joins, querydef.Join{
			Kind:  querydef.ParseJoinKind(m[1]),
			Path:  resolver.Resolve(m[2]).Name,
			Alias: m[3],
		})
	}
	return nil
}

// parseProjection infers the return type from the select list.
// select new P(...) selects projection P; a list of column references
// selects a tuple; the root alias, * and aggregates keep the entity.
func parseProjection(spec *querydef.Spec, prefix string, cat *schema.Catalog, resolver *attribute.Resolver) error {
	if m := selectNewPattern.FindStringSubmatch(prefix); m != nil {
		name := m[1]
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		proj, ok := cat.Projection(name)
		if !ok {
			return querydef.NewSyntaxError(spec.Method, spec.Raw, m[1], "unknown projection")
		}

		var cols []querydef.AttributePath
		for _, arg := range strings.Split(m[2], ",") {
			if arg = strings.TrimSpace(arg); arg != "" {
				cols = append(cols, resolver.Resolve(arg))
			}
		}
		if len(cols) == 0 {
			for _, f := range proj.Fields {
				cols = append(cols, resolver.Resolve(f))
			}
		}
		if len(cols) != len(proj.Fields) {
			return querydef.NewSyntaxError(spec.Method, spec.Raw, m[0],
				fmt.Sprintf("projection %s takes %d arguments, got %d", proj.Name, len(proj.Fields), len(cols)))
		}
		spec.Return = querydef.ReturnType{Kind: querydef.ReturnProjection, Name: proj.Name, Columns: cols}
		return nil
	}

	m := selectColumnsPattern.FindStringSubmatch(prefix)
	if m == nil || countPattern.MatchString(m[1]) {
		return nil
	}
	items := strings.Split(m[1], ",")
	if len(items) == 1 {
		item := strings.TrimSpace(items[0])
		if item == "*" || item == spec.RootAlias || resolver.HasAlias(item) {
			return nil
		}
	}

	cols := make([]querydef.AttributePath, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if !columnRefPattern.MatchString(item) {
			return querydef.NewSyntaxError(spec.Method, spec.Raw, item, "unsupported select expression")
		}
		cols = append(cols, resolver.Resolve(item))
	}
	spec.Return = querydef.ReturnType{Kind: querydef.ReturnTuple, Columns: cols}
	return nil
}

// parseWhere parses every condition of the where clause. Conditions outside
// the grammar go through the fallback policy.
func (s *Structured) parseWhere(spec *querydef.Spec, where string, resolver *attribute.Resolver) error {
	if where == "" {
		return querydef.NewSyntaxError(spec.Method, spec.Raw, "where", "empty where clause")
	}

	tokens, connectors := splitConditions(where)
	positional := 0
	for i, tok := range tokens {
		cond, err := parseCondition(tok, resolver, &positional)
		if errors.Is(err, errNoMatch) {
			if err := s.fallback(spec, tok, &positional); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return querydef.NewSyntaxError(spec.Method, spec.Raw, tok, err.Error())
		}
		cond.Connector = connectors[i]
		spec.Conditions = append(spec.Conditions, cond)
		if cond.Value.Kind != querydef.SubstitutionNone {
			spec.Substitutions = append(spec.Substitutions, cond.Value)
		}
	}
	return nil
}

// fallback applies the fallback policy to an unrecognized condition.
// Under FallbackWarn the condition's placeholders are bound so positional
// numbering of later conditions is unaffected, but no predicate is built.
func (s *Structured) fallback(spec *querydef.Spec, tok string, positional *int) error {
	if s.opts.Fallback == FallbackStrict {
		return querydef.NewSyntaxError(spec.Method, spec.Raw, tok, "unsupported condition")
	}

	bound := 0
	for _, p := range querydef.ScanPlaceholders(tok) {
		if p.Named() {
			spec.Substitutions = append(spec.Substitutions, querydef.Named(p.Name, p.Token))
			bound++
			continue
		}
		sub, err := querydef.PositionalToken(p.Token, *positional)
		if err != nil {
			return querydef.NewSyntaxError(spec.Method, spec.Raw, tok, err.Error())
		}
		*positional++
		spec.Substitutions = append(spec.Substitutions, sub)
		bound++
	}

	spec.Diagnostics = append(spec.Diagnostics, querydef.Diagnostic{
		Fragment: tok,
		Message:  "condition outside supported grammar; predicate dropped, parameters kept",
	})
	s.opts.logger().Warn("condition outside supported grammar",
		"method", spec.Method.String(),
		"fragment", tok,
		"bound", bound)
	return nil
}

// splitConditions splits a where clause on and/or outside quotes and
// parentheses. connectors[i] attaches tokens[i] to the token before it;
// the first connector is always AND.
func splitConditions(where string) ([]string, []querydef.Connector) {
	var tokens []string
	connectors := []querydef.Connector{querydef.ConnectorAnd}

	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(where); i++ {
		c := where[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			loc := connectorPattern.FindStringSubmatchIndex(where[i:])
			if loc == nil {
				continue
			}
			tokens = append(tokens, strings.TrimSpace(where[start:i]))
			connectors = append(connectors, querydef.Connector(strings.ToUpper(where[i+loc[2]:i+loc[3]])))
			start = i + loc[1]
			i = start - 1
		}
	}
	tokens = append(tokens, strings.TrimSpace(where[start:]))
	return tokens, connectors
}

// parseCondition parses one condition token. It returns errNoMatch when
// the token is outside the grammar and a plain error when the token is in
// the grammar but invalid.
func parseCondition(tok string, resolver *attribute.Resolver, positional *int) (querydef.Condition, error) {
	m := conditionPattern.FindStringSubmatch(tok)
	if m == nil {
		return querydef.Condition{}, errNoMatch
	}
	rawField, opToken, rawValue := m[1], strings.TrimSpace(m[2]), strings.TrimSpace(m[3])

	op, err := querydef.ParseOperation(opToken)
	if err != nil {
		return querydef.Condition{}, err
	}
	if op.ExpectsValue() != (rawValue != "") {
		return querydef.Condition{}, errNoMatch
	}

	cond := querydef.Condition{
		Raw:       strings.TrimSpace(tok),
		Attribute: resolver.Resolve(rawField),
		Operation: op,
	}
	if rawValue == "" {
		return cond, nil
	}

	inner, valueCase := attribute.Unwrap(rawValue)
	cond.ValueCase = valueCase
	cond.IgnoreCase = attribute.IgnoreCase(cond.Attribute.Case, valueCase)

	sub, err := classifyValue(inner, rawValue, op, positional)
	if err != nil {
		return querydef.Condition{}, err
	}
	cond.Value = sub
	return cond, nil
}

// classifyValue turns a value token into its substitution.
func classifyValue(inner, raw string, op querydef.Operation, positional *int) (querydef.Substitution, error) {
	switch {
	case strings.HasPrefix(inner, ":"):
		return querydef.Named(inner[1:], raw), nil

	case strings.HasPrefix(inner, "?"):
		sub, err := querydef.PositionalToken(inner, *positional)
		if err != nil {
			return sub, err
		}
		*positional++
		sub.Token = raw
		return sub, nil

	case strings.HasPrefix(inner, "("):
		if !op.IsMembership() {
			return querydef.Substitution{}, fmt.Errorf("list value requires in or not in")
		}
		body := strings.TrimSpace(inner[1 : len(inner)-1])
		if body == "" {
			return querydef.Substitution{}, fmt.Errorf("empty value list")
		}
		if singlePlaceholderPattern.MatchString(body) {
			return classifyValue(body, raw, op, positional)
		}
		list, err := querydef.ParseLiteralList(body)
		if err != nil {
			return querydef.Substitution{}, fmt.Errorf("unsupported literal inside value list: %w", err)
		}
		return querydef.Constant(list, raw), nil

	default:
		lit, err := querydef.ParseLiteral(inner)
		if err != nil {
			return querydef.Substitution{}, errNoMatch
		}
		if op.IsMembership() {
			return querydef.Substitution{}, fmt.Errorf("%s requires a list or parameter", strings.ToLower(strings.ReplaceAll(string(op), "_", " ")))
		}
		return querydef.Constant(lit, raw), nil
	}
}

// parseOrders parses "prop [asc|desc], ...".
func parseOrders(clause string, resolver *attribute.Resolver) ([]querydef.Order, error) {
	if clause == "" {
		return nil, fmt.Errorf("empty order by clause")
	}
	var orders []querydef.Order
	for _, item := range strings.Split(clause, ",") {
		parts := strings.Fields(item)
		if len(parts) == 0 {
			return nil, fmt.Errorf("empty order item")
		}
		if len(parts) > 2 {
			return nil, fmt.Errorf("invalid order item %q", strings.TrimSpace(item))
		}
		o := querydef.Order{Property: resolver.Resolve(parts[0]).Name}
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				o.Descending = true
			default:
				return nil, fmt.Errorf("invalid sort direction %q", parts[1])
			}
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// parseLimit parses the integer following the last limit keyword.
func parseLimit(suffix string) (int, error) {
	parts := strings.Fields(strings.TrimSuffix(strings.TrimSpace(suffix), ";"))
	if len(parts) == 0 {
		return 0, fmt.Errorf("missing limit value")
	}
	if len(parts) > 1 {
		return 0, fmt.Errorf("unexpected text after limit value")
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit value %q", parts[0])
	}
	return n, nil
}
