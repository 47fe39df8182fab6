package queryir

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dynquery/internal/binding"
	"github.com/roach88/dynquery/internal/parser"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/schema"
)

func testCatalog() *schema.Catalog {
	cat := schema.NewCatalog()
	cat.Entities["UserEntity"] = &schema.Entity{
		Name:  "UserEntity",
		Table: "users",
		Key:   "id",
		Fields: []schema.Field{
			{Name: "id", Column: "id", Type: schema.TypeUUID},
			{Name: "username", Column: "username", Type: schema.TypeString},
			{Name: "email", Column: "email", Type: schema.TypeString, Nullable: true},
			{Name: "enabled", Column: "enabled", Type: schema.TypeBool},
			{Name: "age", Column: "age", Type: schema.TypeInt},
			{Name: "createdAt", Column: "created_at", Type: schema.TypeTime},
		},
		Relations: []schema.Relation{{Name: "profile", Entity: "UserProfile", Local: "id", Foreign: "userId"}},
	}
	cat.Entities["UserProfile"] = &schema.Entity{
		Name:  "UserProfile",
		Table: "user_profiles",
		Key:   "id",
		Fields: []schema.Field{
			{Name: "id", Column: "id", Type: schema.TypeInt},
			{Name: "userId", Column: "user_id", Type: schema.TypeUUID},
			{Name: "country", Column: "country", Type: schema.TypeString},
		},
	}
	cat.Projections["UserSummary"] = &schema.Projection{Name: "UserSummary", Fields: []string{"id", "username"}}
	cat.Storages["UserStorage"] = &schema.Storage{Name: "UserStorage", Entity: "UserEntity"}
	return cat
}

func method(query string, params ...string) schema.Method {
	m := schema.Method{Owner: "UserStorage", Name: "query", Query: query, Returns: schema.ResultList}
	for _, p := range params {
		m.Params = append(m.Params, schema.Param{Name: p, Type: "string"})
	}
	return m
}

func parse(t *testing.T, m schema.Method) *querydef.Definition {
	t.Helper()
	chain := parser.NewChain(parser.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	def, err := chain.Parse(m, testCatalog())
	require.NoError(t, err)
	return def
}

func plan(t *testing.T, query string, params ...string) *Plan {
	t.Helper()
	cat := testCatalog()
	p, err := NewPlan(parse(t, method(query, params...)), cat.Entities["UserEntity"], cat)
	require.NoError(t, err)
	return p
}

func bind(t *testing.T, query string, params []string, values ...any) *Select {
	t.Helper()
	sel, err := Bind(plan(t, query, params...), binding.NewArguments(method(query, params...), values))
	require.NoError(t, err)
	return sel
}
