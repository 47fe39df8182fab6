package queryir

import (
	"fmt"

	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/schema"
)

// Criteria is a filter built in code at call time rather than declared as
// query text. Match, All and Any implement it. A nil Criteria matches
// every row.
type Criteria interface {
	criteria()
}

// Match is one condition on an entity property. Dotted paths walk
// relations with inner joins. Values follow the binding rules of declared
// conditions: nil equality becomes a null check, IN needs a collection,
// and LIKE and ordering comparisons need a non-null value.
type Match struct {
	Property   string
	Operation  querydef.Operation
	Value      any
	IgnoreCase bool // compare both sides lower-cased
}

// All holds when every criterion holds. An empty All matches every row.
type All []Criteria

// Any holds when at least one criterion holds. An empty Any matches no
// row.
type Any []Criteria

func (Match) criteria() {}
func (All) criteria()   {}
func (Any) criteria()   {}

// Sort orders criteria results by entity properties.
type Sort []querydef.Order

// Asc returns a sort on the given properties, ascending.
func Asc(properties ...string) Sort {
	s := make(Sort, len(properties))
	for i, p := range properties {
		s[i] = querydef.Order{Property: p}
	}
	return s
}

// Desc returns a sort on the given properties, descending.
func Desc(properties ...string) Sort {
	s := make(Sort, len(properties))
	for i, p := range properties {
		s[i] = querydef.Order{Property: p, Descending: true}
	}
	return s
}

// PlanCriteria resolves c and sort against entity for one call. The plan
// selects whole entity rows and reports errors under ref. Unknown
// properties are UNKNOWN_PROPERTY errors; values that cannot bind are
// EXECUTION_BINDING errors.
func PlanCriteria(ref querydef.MethodRef, entity *schema.Entity, cat *schema.Catalog, c Criteria, sort Sort) (*Plan, *Select, error) {
	def := querydef.New(querydef.Spec{
		Method: ref,
		Raw:    "criteria",
		Action: querydef.ActionFind,
		Return: querydef.ReturnType{Kind: querydef.ReturnEntity, Name: entity.Name},
	})
	p := newPlanner(def, entity, cat)

	key, ok := entity.KeyField()
	if !ok {
		return nil, nil, p.unknown(entity.Name + "." + entity.Key)
	}

	keyCol := Column{Table: p.rootAlias, Name: key.Column, Type: key.Type, Path: key.Name}
	filter, err := p.criteria(c, keyCol)
	if err != nil {
		return nil, nil, err
	}

	var orders []OrderBy
	for _, o := range sort {
		col, err := p.resolve(o.Property)
		if err != nil {
			return nil, nil, err
		}
		orders = append(orders, OrderBy{Column: col, Descending: o.Descending})
	}

	plan := &Plan{
		Definition: def,
		Entity:     entity,
		Table:      entity.Table,
		Alias:      p.rootAlias,
		Key:        keyCol,
		Joins:      p.joins,
		Orders:     orders,
		Outputs:    entityOutputs(entity, p.rootAlias),
	}
	sel := &Select{
		Table:   plan.Table,
		Alias:   plan.Alias,
		Key:     plan.Key,
		Outputs: plan.Outputs,
		Joins:   plan.Joins,
		Filter:  filter,
		Orders:  plan.Orders,
	}
	return plan, sel, nil
}

// criteria converts c into a predicate, resolving properties as it goes.
// A nil predicate matches every row.
func (p *planner) criteria(c Criteria, key Column) (Predicate, error) {
	switch c := c.(type) {
	case nil:
		return nil, nil
	case Match:
		return p.match(c)
	case All:
		preds, err := p.children(c, key)
		if err != nil || len(preds) == 0 {
			return nil, err
		}
		if len(preds) == 1 {
			return preds[0], nil
		}
		return And{Predicates: preds}, nil
	case Any:
		if len(c) == 0 {
			return In{Left: Operand{Column: key}}, nil
		}
		preds, err := p.children(c, key)
		if err != nil {
			return nil, err
		}
		if len(preds) < len(c) {
			// a nil child matches every row, so the disjunction does too
			return nil, nil
		}
		if len(preds) == 1 {
			return preds[0], nil
		}
		return Or{Predicates: preds}, nil
	default:
		return nil, fmt.Errorf("unsupported criteria type: %T", c)
	}
}

func (p *planner) children(cs []Criteria, key Column) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(cs))
	for _, c := range cs {
		pred, err := p.criteria(c, key)
		if err != nil {
			return nil, err
		}
		if pred != nil {
			preds = append(preds, pred)
		}
	}
	return preds, nil
}

func (p *planner) match(m Match) (Predicate, error) {
	col, err := p.resolve(m.Property)
	if err != nil {
		return nil, err
	}
	ref := p.def.Method()
	if m.Operation.IsOrdering() && !col.Type.Comparable() {
		return nil, querydef.NewExecutionBindingError(ref, fmt.Sprintf("%s is not comparable", col.Path))
	}

	cond := Condition{
		Condition: querydef.Condition{
			Raw:        fmt.Sprintf("%s %s", m.Property, m.Operation),
			Attribute:  querydef.AttributePath{Raw: m.Property, Name: m.Property},
			Operation:  m.Operation,
			IgnoreCase: m.IgnoreCase,
		},
		Column: col,
	}
	if m.IgnoreCase {
		cond.Attribute.Case = querydef.CaseLower
		cond.ValueCase = querydef.CaseLower
	}

	switch m.Operation {
	case querydef.OpIsNull:
		return Null{Left: Operand{Column: col}}, nil
	case querydef.OpIsNotNull:
		return Null{Left: Operand{Column: col}, Negated: true}, nil
	}
	return bindValue(ref, cond, m.Value)
}
