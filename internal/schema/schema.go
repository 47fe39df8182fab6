// Package schema defines the declarations a query is parsed and planned
// against: entities, projections, and storages with their methods.
//
// Declarations are compiled from CUE by package compiler and are read-only
// afterwards.
package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dynquery/internal/querydef"
)

// FieldType is the declared type of an entity field or method parameter.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeTime   FieldType = "time"
	TypeUUID   FieldType = "uuid"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBool, TypeTime, TypeUUID:
		return true
	}
	return false
}

// Comparable reports whether values of t have a natural order.
func (t FieldType) Comparable() bool {
	return t != TypeBool
}

// Textual reports whether values of t are stored as text.
func (t FieldType) Textual() bool {
	return t == TypeString || t == TypeUUID
}

// Field is one persistent property of an entity.
type Field struct {
	Name     string    `json:"name"`
	Column   string    `json:"column"`
	Type     FieldType `json:"type"`
	Nullable bool      `json:"nullable,omitempty"`
}

// Relation links an entity to another through a column pair:
// this.Local = target.Foreign.
type Relation struct {
	Name    string `json:"name"`
	Entity  string `json:"entity"`
	Local   string `json:"local"`
	Foreign string `json:"foreign"`
}

// Entity is a persistent type mapped to one table.
type Entity struct {
	Name      string     `json:"name"`
	Table     string     `json:"table"`
	Key       string     `json:"key"`
	Fields    []Field    `json:"fields"`
	Relations []Relation `json:"relations,omitempty"`
}

// Field looks up a field by property name.
func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldByColumn looks up a field by column name (case-insensitive).
func (e *Entity) FieldByColumn(column string) (Field, bool) {
	for _, f := range e.Fields {
		if strings.EqualFold(f.Column, column) {
			return f, true
		}
	}
	return Field{}, false
}

// Lookup resolves a reference that may name either a property or a
// column. Relation endpoints use this form.
func (e *Entity) Lookup(ref string) (Field, bool) {
	if f, ok := e.Field(ref); ok {
		return f, true
	}
	return e.FieldByColumn(ref)
}

// Relation looks up a relation by name.
func (e *Entity) Relation(name string) (Relation, bool) {
	for _, r := range e.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// KeyField returns the primary key field.
func (e *Entity) KeyField() (Field, bool) {
	return e.Field(e.Key)
}

// Projection is a named subset of entity fields, in constructor order.
type Projection struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// ResultKind is the declared result shape of a storage method.
type ResultKind string

const (
	ResultList  ResultKind = "list"
	ResultOne   ResultKind = "one"
	ResultPage  ResultKind = "page"
	ResultCount ResultKind = "count"
	ResultBool  ResultKind = "bool"
)

// Valid reports whether k is a known result kind.
func (k ResultKind) Valid() bool {
	switch k {
	case ResultList, ResultOne, ResultPage, ResultCount, ResultBool:
		return true
	}
	return false
}

// Numeric reports whether the method returns a number.
func (k ResultKind) Numeric() bool { return k == ResultCount }

// Boolean reports whether the method returns a boolean.
func (k ResultKind) Boolean() bool { return k == ResultBool }

// Param is one declared method parameter.
//
// Type is a FieldType, optionally prefixed with "[]" for collection
// parameters. Bind is the explicit parameter name used in query text;
// when empty the parameter binds by Name.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Bind string `json:"bind,omitempty"`
}

// BoundName returns the name query text refers to this parameter by.
func (p Param) BoundName() string {
	if p.Bind != "" {
		return p.Bind
	}
	return p.Name
}

// IsCollection reports whether the parameter carries multiple values.
func (p Param) IsCollection() bool {
	return strings.HasPrefix(p.Type, "[]")
}

// ElemType returns the element type of the parameter.
func (p Param) ElemType() FieldType {
	return FieldType(strings.TrimPrefix(p.Type, "[]"))
}

// Method is one declared data-access method of a storage.
type Method struct {
	Owner   string     `json:"owner"`
	Name    string     `json:"name"`
	Query   string     `json:"query,omitempty"`
	Native  bool       `json:"native,omitempty"`
	Params  []Param    `json:"params,omitempty"`
	Returns ResultKind `json:"returns"`
}

// Ref returns the method identifier used in definitions and errors.
func (m Method) Ref() querydef.MethodRef {
	return querydef.MethodRef{Owner: m.Owner, Name: m.Name}
}

// ParamNames returns the bound name of every parameter, in order.
func (m Method) ParamNames() []string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.BoundName()
	}
	return names
}

// ParamIndex returns the position of the parameter bound to name.
func (m Method) ParamIndex(name string) (int, bool) {
	for i, p := range m.Params {
		if p.BoundName() == name {
			return i, true
		}
	}
	return -1, false
}

// Storage is a named group of methods over one entity.
type Storage struct {
	Name    string   `json:"name"`
	Entity  string   `json:"entity"`
	Methods []Method `json:"methods"`
}

// Method looks up a method by name.
func (s *Storage) Method(name string) (Method, bool) {
	for _, m := range s.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// Catalog holds every declaration known to a process.
type Catalog struct {
	Entities    map[string]*Entity
	Projections map[string]*Projection
	Storages    map[string]*Storage
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Entities:    make(map[string]*Entity),
		Projections: make(map[string]*Projection),
		Storages:    make(map[string]*Storage),
	}
}

// Entity looks up an entity by name.
func (c *Catalog) Entity(name string) (*Entity, bool) {
	e, ok := c.Entities[name]
	return e, ok
}

// Projection looks up a projection by name.
func (c *Catalog) Projection(name string) (*Projection, bool) {
	p, ok := c.Projections[name]
	return p, ok
}

// Storage looks up a storage by name.
func (c *Catalog) Storage(name string) (*Storage, bool) {
	s, ok := c.Storages[name]
	return s, ok
}

// EntityForTable looks up an entity by table name (case-insensitive).
func (c *Catalog) EntityForTable(table string) (*Entity, bool) {
	for _, name := range c.EntityNames() {
		if e := c.Entities[name]; strings.EqualFold(e.Table, table) {
			return e, true
		}
	}
	return nil, false
}

// EntityNames returns entity names sorted.
func (c *Catalog) EntityNames() []string {
	return sortedKeys(c.Entities)
}

// StorageNames returns storage names sorted.
func (c *Catalog) StorageNames() []string {
	return sortedKeys(c.Storages)
}

// LookupMethod resolves "Storage.method".
func (c *Catalog) LookupMethod(qualified string) (*Storage, Method, error) {
	owner, name, ok := strings.Cut(qualified, ".")
	if !ok {
		return nil, Method{}, fmt.Errorf("method reference must be Storage.method: %q", qualified)
	}
	s, ok := c.Storage(owner)
	if !ok {
		return nil, Method{}, fmt.Errorf("unknown storage: %q", owner)
	}
	m, ok := s.Method(name)
	if !ok {
		return nil, Method{}, fmt.Errorf("unknown method %q on storage %q", name, owner)
	}
	return s, m, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
