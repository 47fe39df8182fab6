package cli

import (
	"time"

	"github.com/roach88/dynquery/internal/binding"
	"github.com/roach88/dynquery/internal/queryir"
	"github.com/roach88/dynquery/internal/querysql"
	"github.com/roach88/dynquery/internal/repository"
	"github.com/roach88/dynquery/internal/schema"
)

// samplePageSize is the window rendered for page methods.
const samplePageSize = 20

// sampleArguments binds the zero value of each parameter's declared type.
// Collection parameters get a single zero element.
func sampleArguments(m schema.Method) binding.Arguments {
	values := make([]any, len(m.Params))
	for i, p := range m.Params {
		v := zeroValue(p.ElemType())
		if p.IsCollection() {
			values[i] = []any{v}
		} else {
			values[i] = v
		}
	}
	return binding.NewArguments(m, values)
}

func zeroValue(t schema.FieldType) any {
	switch t {
	case schema.TypeInt:
		return int64(0)
	case schema.TypeFloat:
		return float64(0)
	case schema.TypeBool:
		return false
	case schema.TypeTime:
		return time.Time{}
	case schema.TypeUUID:
		return "00000000-0000-0000-0000-000000000000"
	default:
		return ""
	}
}

// renderSQL returns the statement e runs for sample arguments, rendered
// for the compiler's dialect. Values stay out of the text.
func renderSQL(c *querysql.Compiler, e *repository.Entry) (string, error) {
	args := sampleArguments(e.Method)
	def := e.Definition

	if def.Native() {
		var sql string
		var err error
		switch e.Method.Returns {
		case schema.ResultCount:
			sql, _, err = c.NativeCount(def, args)
		case schema.ResultBool:
			sql, _, err = c.NativeExists(def, args)
		case schema.ResultPage:
			sql, _, err = c.NativePage(def, args, 0, samplePageSize)
		default:
			sql, _, err = c.NativeFind(def, args)
		}
		return sql, err
	}

	sel, err := queryir.Bind(e.Plan, args)
	if err != nil {
		return "", err
	}
	var sql string
	switch e.Method.Returns {
	case schema.ResultCount:
		sql, _, err = c.Count(sel)
	case schema.ResultBool:
		sql, _, err = c.Exists(sel)
	case schema.ResultPage:
		sql, _, err = c.Page(sel, 0, samplePageSize)
	default:
		sql, _, err = c.Find(sel)
	}
	return sql, err
}
