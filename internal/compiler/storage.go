package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/dynquery/internal/schema"
)

// CompileStorage parses a CUE value into a Storage.
//
//	storage: UserStorage: {
//		entity: "UserEntity"
//		methods: findByUsername: {
//			query:   "find distinct where username = ?1"
//			params:  [{name: "username", type: "string"}]
//			returns: "list"
//		}
//	}
//
// returns defaults to "list". A method without query text is derived from
// its name.
func CompileStorage(v cue.Value) (*schema.Storage, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &schema.Storage{Name: labelOf(v)}

	entity, err := requiredString(v, "entity", "entity")
	if err != nil {
		return nil, err
	}
	s.Entity = entity

	methodsVal := v.LookupPath(cue.ParsePath("methods"))
	if !methodsVal.Exists() {
		return nil, &CompileError{
			Field:   "methods",
			Message: "at least one method is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := methodsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		m, err := parseMethod(s.Name, iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		s.Methods = append(s.Methods, m)
	}

	return s, nil
}

func parseMethod(owner, name string, v cue.Value) (schema.Method, error) {
	m := schema.Method{Owner: owner, Name: name, Returns: schema.ResultList}
	prefix := fmt.Sprintf("methods.%s.", name)

	query, err := optionalString(v, "query")
	if err != nil {
		return m, err
	}
	m.Query = query

	nativeVal := v.LookupPath(cue.ParsePath("native"))
	if nativeVal.Exists() {
		b, err := nativeVal.Bool()
		if err != nil {
			return m, formatCUEError(err)
		}
		m.Native = b
	}

	returns, err := optionalString(v, "returns")
	if err != nil {
		return m, err
	}
	if returns != "" {
		m.Returns = schema.ResultKind(returns)
	}

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		pIter, err := paramsVal.List()
		if err != nil {
			return m, formatCUEError(err)
		}
		for i := 0; pIter.Next(); i++ {
			pv := pIter.Value()
			field := fmt.Sprintf("%sparams[%d]", prefix, i)

			var p schema.Param
			if p.Name, err = requiredString(pv, "name", field+".name"); err != nil {
				return m, err
			}
			if p.Type, err = requiredString(pv, "type", field+".type"); err != nil {
				return m, err
			}
			if p.Bind, err = optionalString(pv, "bind"); err != nil {
				return m, err
			}
			m.Params = append(m.Params, p)
		}
	}

	return m, nil
}

// CompileCatalog compiles every entity, projection, and storage under the
// top-level entity/projection/storage fields of v.
// All declarations are attempted; every failure is returned.
func CompileCatalog(v cue.Value) (*schema.Catalog, []error) {
	cat := schema.NewCatalog()
	var errs []error

	each := func(section string, fn func(label string, v cue.Value) error) {
		sv := v.LookupPath(cue.ParsePath(section))
		if !sv.Exists() {
			return
		}
		iter, err := sv.Fields()
		if err != nil {
			errs = append(errs, formatCUEError(err))
			return
		}
		for iter.Next() {
			if err := fn(iter.Label(), iter.Value()); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", section, iter.Label(), err))
			}
		}
	}

	each("entity", func(label string, ev cue.Value) error {
		e, err := CompileEntity(ev)
		if err != nil {
			return err
		}
		cat.Entities[label] = e
		return nil
	})
	each("projection", func(label string, pv cue.Value) error {
		p, err := CompileProjection(pv)
		if err != nil {
			return err
		}
		cat.Projections[label] = p
		return nil
	})
	each("storage", func(label string, sv cue.Value) error {
		s, err := CompileStorage(sv)
		if err != nil {
			return err
		}
		cat.Storages[label] = s
		return nil
	})

	return cat, errs
}
