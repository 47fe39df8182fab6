package compiler

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/dynquery/internal/schema"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedType = "E100" // unsupported declaration type for validation

	// Entity errors (E101-E109)
	ErrEntityNoFields       = "E101" // at least one field required
	ErrEntityMissingKey     = "E102" // key names an undeclared field
	ErrInvalidFieldType     = "E103" // invalid type string
	ErrDuplicateName        = "E104" // duplicate field/column/method/param name
	ErrUnknownRelation      = "E105" // relation target entity not declared
	ErrUnknownRelationField = "E106" // relation column not declared on either side
	ErrInvalidIdentifier    = "E107" // table or column is not a plain identifier

	// Projection errors (E110-E119)
	ErrProjectionNoFields = "E110" // at least one field required

	// Storage errors (E120-E129)
	ErrStorageUnknownEntity = "E120" // storage entity not declared
	ErrInvalidResultKind    = "E121" // returns must be list|one|page|count|bool
	ErrInvalidParamType     = "E122" // invalid parameter type
	ErrNativeWithoutQuery   = "E123" // native methods need query text
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// identifierPattern restricts table and column names to plain SQL
// identifiers, since they are interpolated into generated statements.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate validates compiled declarations against schema rules.
// Returns all errors found (does not fail-fast).
// Supports *schema.Catalog, *schema.Entity and *schema.Projection.
// Storages are only validated as part of a catalog because their checks
// need the entity declarations.
func Validate(v any) []ValidationError {
	switch d := v.(type) {
	case *schema.Catalog:
		return validateCatalog(d)
	case *schema.Entity:
		return validateEntity(d, nil)
	case *schema.Projection:
		return validateProjection(d)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported declaration type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

func validateCatalog(cat *schema.Catalog) []ValidationError {
	var errs []ValidationError
	for _, name := range cat.EntityNames() {
		errs = append(errs, validateEntity(cat.Entities[name], cat)...)
	}
	for _, name := range sortedNames(cat.Projections) {
		errs = append(errs, validateProjection(cat.Projections[name])...)
	}
	for _, name := range cat.StorageNames() {
		errs = append(errs, validateStorage(cat.Storages[name], cat)...)
	}
	return errs
}

// validateEntity checks one entity. Relation targets are only checked when
// cat is non-nil.
func validateEntity(e *schema.Entity, cat *schema.Catalog) []ValidationError {
	var errs []ValidationError
	prefix := "entity." + e.Name

	// E101: at least one field
	if len(e.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".fields",
			Message: "at least one field is required",
			Code:    ErrEntityNoFields,
		})
	}

	// E107: table must be a plain identifier
	if !identifierPattern.MatchString(e.Table) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".table",
			Message: fmt.Sprintf("table %q is not a plain identifier", e.Table),
			Code:    ErrInvalidIdentifier,
		})
	}

	names := make(map[string]bool)
	columns := make(map[string]bool)
	for i, f := range e.Fields {
		fieldPath := fmt.Sprintf("%s.fields[%d]", prefix, i)

		// E103: valid type
		if !f.Type.Valid() {
			errs = append(errs, ValidationError{
				Field:   fieldPath + ".type",
				Message: fmt.Sprintf("invalid type %q for field %q", f.Type, f.Name),
				Code:    ErrInvalidFieldType,
			})
		}

		// E107: column must be a plain identifier
		if !identifierPattern.MatchString(f.Column) {
			errs = append(errs, ValidationError{
				Field:   fieldPath + ".column",
				Message: fmt.Sprintf("column %q is not a plain identifier", f.Column),
				Code:    ErrInvalidIdentifier,
			})
		}

		// E104: duplicate field or column
		if names[f.Name] {
			errs = append(errs, ValidationError{
				Field:   fieldPath + ".name",
				Message: fmt.Sprintf("duplicate field name: %q", f.Name),
				Code:    ErrDuplicateName,
			})
		}
		col := strings.ToLower(f.Column)
		if columns[col] {
			errs = append(errs, ValidationError{
				Field:   fieldPath + ".column",
				Message: fmt.Sprintf("duplicate column: %q", f.Column),
				Code:    ErrDuplicateName,
			})
		}
		names[f.Name] = true
		columns[col] = true
	}

	// E102: key must be a declared field
	if len(e.Fields) > 0 && !names[e.Key] {
		errs = append(errs, ValidationError{
			Field:   prefix + ".key",
			Message: fmt.Sprintf("key %q is not a declared field", e.Key),
			Code:    ErrEntityMissingKey,
		})
	}

	for i, r := range e.Relations {
		relPath := fmt.Sprintf("%s.relations[%d]", prefix, i)

		// E104: relation names share the property namespace
		if names[r.Name] {
			errs = append(errs, ValidationError{
				Field:   relPath + ".name",
				Message: fmt.Sprintf("relation %q shadows a field or relation", r.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[r.Name] = true

		// E106: local column must be a field of this entity
		if _, ok := e.Lookup(r.Local); !ok {
			errs = append(errs, ValidationError{
				Field:   relPath + ".local",
				Message: fmt.Sprintf("relation %q: local field %q not declared on %s", r.Name, r.Local, e.Name),
				Code:    ErrUnknownRelationField,
			})
		}

		if cat == nil {
			continue
		}

		// E105: target entity must exist
		target, ok := cat.Entity(r.Entity)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   relPath + ".entity",
				Message: fmt.Sprintf("relation %q targets undeclared entity %q", r.Name, r.Entity),
				Code:    ErrUnknownRelation,
			})
			continue
		}

		// E106: foreign column must be a field of the target
		if _, ok := target.Lookup(r.Foreign); !ok {
			errs = append(errs, ValidationError{
				Field:   relPath + ".foreign",
				Message: fmt.Sprintf("relation %q: foreign field %q not declared on %s", r.Name, r.Foreign, target.Name),
				Code:    ErrUnknownRelationField,
			})
		}
	}

	return errs
}

func validateProjection(p *schema.Projection) []ValidationError {
	var errs []ValidationError

	// E110: at least one field
	if len(p.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "projection." + p.Name + ".fields",
			Message: "at least one field is required",
			Code:    ErrProjectionNoFields,
		})
	}

	seen := make(map[string]bool)
	for i, f := range p.Fields {
		if seen[f] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("projection.%s.fields[%d]", p.Name, i),
				Message: fmt.Sprintf("duplicate projection field: %q", f),
				Code:    ErrDuplicateName,
			})
		}
		seen[f] = true
	}

	return errs
}

func validateStorage(s *schema.Storage, cat *schema.Catalog) []ValidationError {
	var errs []ValidationError
	prefix := "storage." + s.Name

	// E120: entity must exist
	if _, ok := cat.Entity(s.Entity); !ok {
		errs = append(errs, ValidationError{
			Field:   prefix + ".entity",
			Message: fmt.Sprintf("storage %q references undeclared entity %q", s.Name, s.Entity),
			Code:    ErrStorageUnknownEntity,
		})
	}

	methods := make(map[string]bool)
	for _, m := range s.Methods {
		methodPath := prefix + ".methods." + m.Name

		if methods[m.Name] {
			errs = append(errs, ValidationError{
				Field:   methodPath,
				Message: fmt.Sprintf("duplicate method name: %q", m.Name),
				Code:    ErrDuplicateName,
			})
		}
		methods[m.Name] = true

		// E121: result kind
		if !m.Returns.Valid() {
			errs = append(errs, ValidationError{
				Field:   methodPath + ".returns",
				Message: fmt.Sprintf("invalid result kind %q, must be list, one, page, count, or bool", m.Returns),
				Code:    ErrInvalidResultKind,
			})
		}

		// E123: native methods need text
		if m.Native && strings.TrimSpace(m.Query) == "" {
			errs = append(errs, ValidationError{
				Field:   methodPath + ".query",
				Message: "native methods require query text",
				Code:    ErrNativeWithoutQuery,
			})
		}

		params := make(map[string]bool)
		for i, p := range m.Params {
			paramPath := fmt.Sprintf("%s.params[%d]", methodPath, i)

			// E122: parameter type
			if !p.ElemType().Valid() {
				errs = append(errs, ValidationError{
					Field:   paramPath + ".type",
					Message: fmt.Sprintf("invalid parameter type %q for %q", p.Type, p.Name),
					Code:    ErrInvalidParamType,
				})
			}

			// E104: duplicate bound name
			if params[p.BoundName()] {
				errs = append(errs, ValidationError{
					Field:   paramPath + ".name",
					Message: fmt.Sprintf("duplicate parameter name: %q", p.BoundName()),
					Code:    ErrDuplicateName,
				})
			}
			params[p.BoundName()] = true
		}
	}

	return errs
}

func sortedNames[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
