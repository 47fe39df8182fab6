package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/schema"
)

// DefaultRootAlias is the SQL alias of the root table when the query
// declares none.
const DefaultRootAlias = "t0"

// Plan is a definition resolved against the schema. It is immutable.
type Plan struct {
	Definition *querydef.Definition
	Entity     *schema.Entity
	Table      string
	Alias      string
	Key        Column
	Joins      []JoinClause
	Conditions []Condition
	Orders     []OrderBy
	Outputs    []Output
}

// NewPlan resolves def against entity, the entity of its storage. Native
// definitions carry no conditions and only get their output columns
// resolved.
func NewPlan(def *querydef.Definition, entity *schema.Entity, cat *schema.Catalog) (*Plan, error) {
	p := newPlanner(def, entity, cat)

	key, ok := entity.KeyField()
	if !ok {
		return nil, querydef.NewUnknownPropertyError(def.Method(), def.Raw(), entity.Name+"."+entity.Key)
	}

	plan := &Plan{
		Definition: def,
		Entity:     entity,
		Table:      entity.Table,
		Alias:      p.rootAlias,
		Key:        Column{Table: p.rootAlias, Name: key.Column, Type: key.Type, Path: key.Name},
	}

	if def.Native() {
		plan.Outputs = entityOutputs(entity, p.rootAlias)
		return plan, nil
	}

	for _, j := range def.Joins() {
		if err := p.declareJoin(j); err != nil {
			return nil, err
		}
	}

	for _, c := range def.Conditions() {
		col, err := p.resolve(c.Attribute.Name)
		if err != nil {
			return nil, err
		}
		if c.Operation.IsOrdering() && !col.Type.Comparable() {
			return nil, querydef.NewSyntaxError(def.Method(), def.Raw(), c.Raw,
				fmt.Sprintf("%s is not comparable", col.Path))
		}
		plan.Conditions = append(plan.Conditions, Condition{Condition: c, Column: col})
	}

	for _, o := range def.Orders() {
		col, err := p.resolve(o.Property)
		if err != nil {
			return nil, err
		}
		plan.Orders = append(plan.Orders, OrderBy{Column: col, Descending: o.Descending})
	}

	outputs, err := p.outputs()
	if err != nil {
		return nil, err
	}
	plan.Outputs = outputs
	plan.Joins = p.joins
	return plan, nil
}

// OutputNames returns the names outputs are reported under.
func (p *Plan) OutputNames() []string {
	names := make([]string, len(p.Outputs))
	for i, o := range p.Outputs {
		names[i] = o.Name
	}
	return names
}

// planner tracks aliases and joins while a definition is resolved.
type planner struct {
	def       *querydef.Definition
	cat       *schema.Catalog
	root      *schema.Entity
	rootAlias string
	aliases   map[string]*schema.Entity
	implicit  map[string]string // "alias.relation" -> alias of the implicit join
	joins     []JoinClause
	next      int
}

func newPlanner(def *querydef.Definition, root *schema.Entity, cat *schema.Catalog) *planner {
	p := &planner{
		def:       def,
		cat:       cat,
		root:      root,
		rootAlias: DefaultRootAlias,
		aliases:   make(map[string]*schema.Entity),
		implicit:  make(map[string]string),
	}
	if a := def.RootAlias(); a != "" {
		p.rootAlias = a
	}
	p.aliases[p.rootAlias] = root
	return p
}

// declareJoin resolves an explicit join such as "u.profile p". Relations
// before the last segment are joined implicitly with the same kind.
func (p *planner) declareJoin(j querydef.Join) error {
	alias, entity, rels := p.head(strings.Split(j.Path, "."))
	if len(rels) == 0 {
		return p.unknown(j.Path)
	}
	for i, rel := range rels {
		declared := ""
		if i == len(rels)-1 {
			declared = j.Alias
		}
		var err error
		alias, entity, err = p.join(alias, entity, rel, j.Kind, declared, j.Path)
		if err != nil {
			return err
		}
	}
	p.aliases[j.Alias] = entity
	return nil
}

// head strips a leading declared alias from segs.
func (p *planner) head(segs []string) (string, *schema.Entity, []string) {
	if len(segs) > 1 {
		if e, ok := p.aliases[segs[0]]; ok {
			return segs[0], e, segs[1:]
		}
	}
	return p.rootAlias, p.root, segs
}

// join adds a join from fromAlias through relation rel. Implicit joins
// (declared == "") are shared by every path that walks the same relation.
func (p *planner) join(fromAlias string, from *schema.Entity, rel string, kind querydef.JoinKind, declared, path string) (string, *schema.Entity, error) {
	r, ok := from.Relation(rel)
	if !ok {
		return "", nil, p.unknown(path)
	}
	target, ok := p.cat.Entity(r.Entity)
	if !ok {
		return "", nil, p.unknown(path)
	}
	local, ok := from.Lookup(r.Local)
	if !ok {
		return "", nil, p.unknown(path)
	}
	foreign, ok := target.Lookup(r.Foreign)
	if !ok {
		return "", nil, p.unknown(path)
	}

	key := fromAlias + "." + rel
	alias := declared
	if alias == "" {
		if existing, ok := p.implicit[key]; ok {
			return existing, target, nil
		}
		alias = p.freshAlias()
		p.implicit[key] = alias
	}

	p.joins = append(p.joins, JoinClause{
		Kind:  kind,
		Table: target.Table,
		Alias: alias,
		Left:  Column{Table: fromAlias, Name: local.Column, Type: local.Type, Path: local.Name},
		Right: Column{Table: alias, Name: foreign.Column, Type: foreign.Type, Path: foreign.Name},
	})
	return alias, target, nil
}

func (p *planner) freshAlias() string {
	for {
		p.next++
		a := fmt.Sprintf("t%d", p.next)
		if _, taken := p.aliases[a]; !taken {
			return a
		}
	}
}

// resolve maps a property path to its column, joining relations for
// dotted paths that do not start with a declared alias.
func (p *planner) resolve(path string) (Column, error) {
	alias, entity, segs := p.head(strings.Split(path, "."))
	for _, rel := range segs[:len(segs)-1] {
		var err error
		alias, entity, err = p.join(alias, entity, rel, querydef.JoinInner, "", path)
		if err != nil {
			return Column{}, err
		}
	}
	f, ok := entity.Lookup(segs[len(segs)-1])
	if !ok {
		return Column{}, p.unknown(path)
	}
	return Column{Table: alias, Name: f.Column, Type: f.Type, Path: path}, nil
}

// outputs resolves the select list for the definition's return type.
func (p *planner) outputs() ([]Output, error) {
	rt := p.def.ReturnType()
	switch rt.Kind {
	case querydef.ReturnProjection, querydef.ReturnTuple:
		var names []string
		if rt.Kind == querydef.ReturnProjection {
			proj, ok := p.cat.Projection(rt.Name)
			if !ok {
				return nil, p.unknown(rt.Name)
			}
			names = proj.Fields
		}
		out := make([]Output, 0, len(rt.Columns))
		for i, c := range rt.Columns {
			col, err := p.resolve(c.Name)
			if err != nil {
				return nil, err
			}
			name := c.Name[strings.LastIndex(c.Name, ".")+1:]
			if i < len(names) {
				name = names[i]
			}
			out = append(out, Output{Name: name, Column: col})
		}
		return out, nil
	default:
		return entityOutputs(p.root, p.rootAlias), nil
	}
}

func entityOutputs(e *schema.Entity, alias string) []Output {
	out := make([]Output, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = Output{Name: f.Name, Column: Column{Table: alias, Name: f.Column, Type: f.Type, Path: f.Name}}
	}
	return out
}

func (p *planner) unknown(path string) error {
	return querydef.NewUnknownPropertyError(p.def.Method(), p.def.Raw(), path)
}
