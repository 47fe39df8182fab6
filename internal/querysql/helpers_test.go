package querysql

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynquery/internal/binding"
	"github.com/roach88/dynquery/internal/parser"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/queryir"
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
		Relations: []schema.Relation{{Name: "profile", Entity: "UserProfile", Local: "id", Foreign: "user_id"}},
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

// call is one method invocation: the declaration and its arguments.
type call struct {
	name   string
	query  string
	native bool
	params []string
	values []any
}

func (c call) method() schema.Method {
	m := schema.Method{Owner: "UserStorage", Name: c.name, Query: c.query, Native: c.native, Returns: schema.ResultList}
	if m.Name == "" {
		m.Name = "query"
	}
	for _, p := range c.params {
		m.Params = append(m.Params, schema.Param{Name: p, Type: "string"})
	}
	return m
}

func (c call) definition(t *testing.T) *querydef.Definition {
	t.Helper()
	return parseMethod(t, c.method())
}

func parseMethod(t *testing.T, m schema.Method) *querydef.Definition {
	t.Helper()
	chain := parser.NewChain(parser.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	def, err := chain.Parse(m, testCatalog())
	require.NoError(t, err)
	return def
}

func (c call) args() binding.Arguments {
	return binding.NewArguments(c.method(), c.values)
}

func (c call) selection(t *testing.T) *queryir.Select {
	t.Helper()
	cat := testCatalog()
	plan, err := queryir.NewPlan(c.definition(t), cat.Entities["UserEntity"], cat)
	require.NoError(t, err)
	sel, err := queryir.Bind(plan, c.args())
	require.NoError(t, err)
	return sel
}

func assertGolden(t *testing.T, name, sql string, args []any) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(fmt.Sprintf("%s\nargs: %v\n", sql, args)))
}
