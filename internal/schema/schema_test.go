package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userCatalog() *Catalog {
	c := NewCatalog()
	c.Entities["UserEntity"] = &Entity{
		Name:  "UserEntity",
		Table: "users",
		Key:   "id",
		Fields: []Field{
			{Name: "id", Column: "id", Type: TypeUUID},
			{Name: "username", Column: "username", Type: TypeString},
			{Name: "createdAt", Column: "created_at", Type: TypeTime},
		},
		Relations: []Relation{{Name: "profile", Entity: "UserProfile", Local: "id", Foreign: "user_id"}},
	}
	c.Storages["UserStorage"] = &Storage{
		Name:   "UserStorage",
		Entity: "UserEntity",
		Methods: []Method{{
			Owner:   "UserStorage",
			Name:    "findByPattern",
			Query:   "select * from users where username like :pattern",
			Native:  true,
			Params:  []Param{{Name: "p", Type: "string", Bind: "pattern"}, {Name: "ids", Type: "[]uuid"}},
			Returns: ResultList,
		}},
	}
	return c
}

func TestEntityLookups(t *testing.T) {
	e, ok := userCatalog().Entity("UserEntity")
	require.True(t, ok)

	f, ok := e.Field("createdAt")
	require.True(t, ok)
	assert.Equal(t, "created_at", f.Column)

	f, ok = e.FieldByColumn("CREATED_AT")
	require.True(t, ok)
	assert.Equal(t, "createdAt", f.Name)

	key, ok := e.KeyField()
	require.True(t, ok)
	assert.Equal(t, TypeUUID, key.Type)

	_, ok = e.Relation("profile")
	assert.True(t, ok)
	_, ok = e.Field("missing")
	assert.False(t, ok)
}

func TestParamBoundName(t *testing.T) {
	_, m, err := userCatalog().LookupMethod("UserStorage.findByPattern")
	require.NoError(t, err)

	assert.Equal(t, []string{"pattern", "ids"}, m.ParamNames())
	idx, ok := m.ParamIndex("pattern")
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	_, ok = m.ParamIndex("p")
	assert.False(t, ok, "explicit bind name replaces the declared name")

	assert.True(t, m.Params[1].IsCollection())
	assert.Equal(t, TypeUUID, m.Params[1].ElemType())
	assert.Equal(t, "UserStorage.findByPattern", m.Ref().String())
}

func TestLookupMethodErrors(t *testing.T) {
	c := userCatalog()

	_, _, err := c.LookupMethod("findByPattern")
	assert.Error(t, err)

	_, _, err = c.LookupMethod("OrderStorage.find")
	assert.ErrorContains(t, err, "unknown storage")

	_, _, err = c.LookupMethod("UserStorage.missing")
	assert.ErrorContains(t, err, "unknown method")
}

func TestEntityForTable(t *testing.T) {
	e, ok := userCatalog().EntityForTable("USERS")
	require.True(t, ok)
	assert.Equal(t, "UserEntity", e.Name)
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, TypeTime.Valid())
	assert.False(t, FieldType("array").Valid())
	assert.False(t, TypeBool.Comparable())
	assert.True(t, TypeUUID.Textual())
	assert.True(t, ResultPage.Valid())
	assert.False(t, ResultKind("stream").Valid())
}
