package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dynquery/internal/attribute"
	"github.com/roach88/dynquery/internal/schema"
)

// CompileEntity parses a CUE value into an Entity.
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: UserEntity: { ... }`)
//	e, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.UserEntity")))
//
// Fields accept a short form ("string", "time?" for nullable) or a struct
// form ({type: "time", column: "created_at"}). Columns default to the
// snake_case of the property name.
func CompileEntity(v cue.Value) (*schema.Entity, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	e := &schema.Entity{Name: labelOf(v)}

	table, err := optionalString(v, "table")
	if err != nil {
		return nil, err
	}
	e.Table = table
	if e.Table == "" {
		e.Table = attribute.SnakeCase(e.Name)
	}

	key, err := optionalString(v, "key")
	if err != nil {
		return nil, err
	}
	e.Key = key
	if e.Key == "" {
		e.Key = "id"
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := parseField(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		e.Fields = append(e.Fields, f)
	}

	relVal := v.LookupPath(cue.ParsePath("relations"))
	if relVal.Exists() {
		relIter, err := relVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for relIter.Next() {
			r, err := parseRelation(relIter.Label(), relIter.Value())
			if err != nil {
				return nil, err
			}
			e.Relations = append(e.Relations, r)
		}
	}

	return e, nil
}

// parseField accepts "type", "type?" or {type, column, nullable}.
func parseField(name string, v cue.Value) (schema.Field, error) {
	f := schema.Field{Name: name, Column: attribute.SnakeCase(name)}

	if s, err := v.String(); err == nil {
		f.Type, f.Nullable = splitNullable(s)
		return f, nil
	}

	if v.IncompleteKind() != cue.StructKind {
		return f, &CompileError{
			Field:   "fields." + name,
			Message: "must be a type string or a struct with a type field",
			Pos:     v.Pos(),
		}
	}

	typ, err := requiredString(v, "type", "fields."+name+".type")
	if err != nil {
		return f, err
	}
	f.Type, f.Nullable = splitNullable(typ)

	col, err := optionalString(v, "column")
	if err != nil {
		return f, err
	}
	if col != "" {
		f.Column = col
	}

	nullVal := v.LookupPath(cue.ParsePath("nullable"))
	if nullVal.Exists() {
		b, err := nullVal.Bool()
		if err != nil {
			return f, formatCUEError(err)
		}
		f.Nullable = f.Nullable || b
	}

	return f, nil
}

func splitNullable(typ string) (schema.FieldType, bool) {
	typ = strings.TrimSpace(typ)
	if strings.HasSuffix(typ, "?") {
		return schema.FieldType(strings.TrimSuffix(typ, "?")), true
	}
	return schema.FieldType(typ), false
}

func parseRelation(name string, v cue.Value) (schema.Relation, error) {
	r := schema.Relation{Name: name}
	var err error
	prefix := "relations." + name + "."
	if r.Entity, err = requiredString(v, "entity", prefix+"entity"); err != nil {
		return r, err
	}
	if r.Local, err = requiredString(v, "local", prefix+"local"); err != nil {
		return r, err
	}
	if r.Foreign, err = requiredString(v, "foreign", prefix+"foreign"); err != nil {
		return r, err
	}
	return r, nil
}

// CompileProjection parses a CUE value into a Projection.
func CompileProjection(v cue.Value) (*schema.Projection, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &schema.Projection{Name: labelOf(v)}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "projection fields are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := fieldsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.Fields = append(p.Fields, s)
	}

	return p, nil
}

// labelOf returns the last path selector of v, which is the declaration name.
func labelOf(v cue.Value) string {
	labels := v.Path().Selectors()
	if len(labels) == 0 {
		return ""
	}
	return labels[len(labels)-1].String()
}

func optionalString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func requiredString(v cue.Value, path, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
