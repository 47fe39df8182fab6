package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/schema"
)

var (
	// trailingLimitPattern matches a limit at the very end of native text.
	trailingLimitPattern = regexp.MustCompile(`(?i)\blimit\s+(\d+)\s*;?\s*$`)

	// selectStarPattern matches select * and select alias.*.
	selectStarPattern = regexp.MustCompile(`(?i)^select\s+(?:distinct\s+)?(?:\w+\.)?\*`)

	// selectPattern matches any select statement.
	selectPattern = regexp.MustCompile(`(?i)^select\b`)
)

// Native parses pass-through queries. It records placeholders and a
// trailing limit only; the text reaches the backend unchanged apart from
// placeholder rewriting.
type Native struct{}

func (*Native) Name() string { return "native" }

// Supports reports whether m is flagged native.
func (*Native) Supports(m schema.Method) bool {
	return m.Native
}

// Parse records :name placeholders as named substitutions and ? / ?N as
// positional ones, in source order.
func (*Native) Parse(m schema.Method, cat *schema.Catalog) (*querydef.Definition, error) {
	raw := strings.TrimSpace(m.Query)
	ref := m.Ref()

	entity, err := storageEntity(m, cat)
	if err != nil {
		return nil, err
	}

	subs, err := querydef.Substitutions(querydef.ScanPlaceholders(raw))
	if err != nil {
		return nil, querydef.NewSyntaxError(ref, raw, "", err.Error())
	}

	spec := querydef.Spec{
		Method:        ref,
		Raw:           raw,
		Native:        true,
		Action:        inferAction(m, raw),
		Substitutions: subs,
		Return:        querydef.ReturnType{Kind: querydef.ReturnEntity, Name: entity.Name},
	}

	if match := trailingLimitPattern.FindStringSubmatch(raw); match != nil {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, querydef.NewSyntaxError(ref, raw, match[0], "invalid limit value")
		}
		spec.Limit = &n
	}

	if selectPattern.MatchString(raw) && !selectStarPattern.MatchString(raw) {
		spec.Return = querydef.ReturnType{Kind: querydef.ReturnTuple}
	}

	return finish(m, spec)
}
