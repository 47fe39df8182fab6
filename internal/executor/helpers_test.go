package executor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dynquery/internal/binding"
	"github.com/roach88/dynquery/internal/parser"
	"github.com/roach88/dynquery/internal/queryir"
	"github.com/roach88/dynquery/internal/schema"
	"github.com/roach88/dynquery/internal/store"
)

const (
	aliceID = "0190a4f2-0000-7000-8000-000000000001"
	bobID   = "0190a4f2-0000-7000-8000-000000000002"
	carolID = "0190a4f2-0000-7000-8000-000000000003"
	daveID  = "0190a4f2-0000-7000-8000-000000000004"
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

// countingProvider wraps a provider and records how connections are used.
type countingProvider struct {
	store.Provider
	acquired    int
	released    int
	failAcquire error
}

func (p *countingProvider) Acquire(ctx context.Context) (store.Conn, error) {
	if p.failAcquire != nil {
		return nil, p.failAcquire
	}
	conn, err := p.Provider.Acquire(ctx)
	if err == nil {
		p.acquired++
	}
	return conn, err
}

func (p *countingProvider) Release(conn store.Conn) error {
	p.released++
	return p.Provider.Release(conn)
}

type testEnv struct {
	cat      *schema.Catalog
	provider *countingProvider
	exec     *Executor
}

// newTestEnv opens a seeded in-memory store:
//
//	alice 30 enabled  NZ
//	bob   25 enabled  US  (no email)
//	carol 41 disabled NZ
//	dave  19 enabled      (no profile)
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	cat := testCatalog()

	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(ctx, cat))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	users := []map[string]any{
		{"id": aliceID, "username": "alice", "email": "alice@example.com", "enabled": true, "age": 30, "createdAt": base},
		{"id": bobID, "username": "bob", "enabled": true, "age": 25, "createdAt": base.Add(time.Hour)},
		{"id": carolID, "username": "carol", "email": "carol@example.org", "enabled": false, "age": 41, "createdAt": base.Add(2 * time.Hour)},
		{"id": daveID, "username": "dave", "email": "dave@example.com", "enabled": true, "age": 19, "createdAt": base.Add(3 * time.Hour)},
	}
	require.NoError(t, s.InsertAll(ctx, cat.Entities["UserEntity"], users))

	profiles := []map[string]any{
		{"id": 1, "userId": aliceID, "country": "NZ"},
		{"id": 2, "userId": bobID, "country": "US"},
		{"id": 3, "userId": carolID, "country": "NZ"},
	}
	require.NoError(t, s.InsertAll(ctx, cat.Entities["UserProfile"], profiles))

	p := &countingProvider{Provider: s}
	return &testEnv{cat: cat, provider: p, exec: New(p, s.Dialect())}
}

// plan parses and plans m against the test catalog.
func (env *testEnv) plan(t *testing.T, m schema.Method) *queryir.Plan {
	t.Helper()
	chain := parser.NewChain(parser.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	def, err := chain.Parse(m, env.cat)
	require.NoError(t, err)
	plan, err := queryir.NewPlan(def, env.cat.Entities["UserEntity"], env.cat)
	require.NoError(t, err)
	return plan
}

func method(query string, params ...string) schema.Method {
	m := schema.Method{Owner: "UserStorage", Name: "query", Query: query, Returns: schema.ResultList}
	for _, p := range params {
		m.Params = append(m.Params, schema.Param{Name: p, Type: "string"})
	}
	return m
}

func native(query string, params ...string) schema.Method {
	m := method(query, params...)
	m.Native = true
	return m
}

func args(m schema.Method, values ...any) binding.Arguments {
	return binding.NewArguments(m, values)
}

func usernames(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		v, _ := r.Get("username")
		out[i], _ = v.(string)
	}
	return out
}
