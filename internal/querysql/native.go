package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/dynquery/internal/binding"
	"github.com/roach88/dynquery/internal/querydef"
)

// aggregatePattern matches native text that selects a count.
var aggregatePattern = regexp.MustCompile(`(?i)^select\s+count\s*\(`)

// NativeFind binds a native query for row retrieval. The text keeps its
// own limit, if any.
func (c *Compiler) NativeFind(def *querydef.Definition, args binding.Arguments) (string, []any, error) {
	return c.BindNative(def, args)
}

// NativeCount counts the rows of a native query. A native COUNT query
// already returns its count and runs unchanged.
func (c *Compiler) NativeCount(def *querydef.Definition, args binding.Arguments) (string, []any, error) {
	text, values, err := c.BindNative(def, args)
	if err != nil || def.Action() == querydef.ActionCount {
		return text, values, err
	}
	return "SELECT COUNT(*) FROM (" + text + ") AS q", values, nil
}

// NativeExists reports whether a native query returns at least one row.
// A native COUNT query runs unchanged; its count is positive when rows
// exist.
func (c *Compiler) NativeExists(def *querydef.Definition, args binding.Arguments) (string, []any, error) {
	text, values, err := c.BindNative(def, args)
	if err != nil {
		return "", nil, err
	}
	if aggregatePattern.MatchString(text) {
		return text, values, nil
	}
	return "SELECT COUNT(*) FROM (SELECT 1 FROM (" + text + ") AS q LIMIT 1) AS e", values, nil
}

// NativePage selects one window of a native query's rows.
func (c *Compiler) NativePage(def *querydef.Definition, args binding.Arguments, offset, size int) (string, []any, error) {
	text, values, err := c.BindNative(def, args)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d OFFSET %d", text, size, offset), values, nil
}

// BindNative rewrites the :name, ? and ?N placeholders of a native query
// into dialect placeholders and returns the values in placeholder order.
// Collection values expand to one placeholder per element, so
// "in (?1)" binds a slice; an empty collection renders NULL. Quoted text
// and :: casts are left untouched. A trailing semicolon is dropped.
func (c *Compiler) BindNative(def *querydef.Definition, args binding.Arguments) (string, []any, error) {
	text := strings.TrimSuffix(strings.TrimSpace(def.Raw()), ";")
	placeholders := querydef.ScanPlaceholders(text)
	subs := def.Substitutions()
	if len(subs) != len(placeholders) {
		return "", nil, querydef.NewExecutionBindingError(def.Method(),
			fmt.Sprintf("native query has %d placeholder(s) but %d substitution(s)", len(placeholders), len(subs)))
	}

	var b strings.Builder
	var values []any
	last := 0
	for i, p := range placeholders {
		v, err := args.Resolve(subs[i])
		if err != nil {
			return "", nil, err
		}
		b.WriteString(text[last:p.Start])
		last = p.End

		elems, many := expand(v)
		if !many {
			values = append(values, v)
			b.WriteString(c.dialect.placeholder(len(values)))
			continue
		}
		if len(elems) == 0 {
			b.WriteString("NULL")
			continue
		}
		for j, e := range elems {
			if j > 0 {
				b.WriteString(", ")
			}
			values = append(values, e)
			b.WriteString(c.dialect.placeholder(len(values)))
		}
	}
	b.WriteString(text[last:])
	return b.String(), values, nil
}
