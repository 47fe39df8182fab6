package executor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/schema"
)

func TestFind(t *testing.T) {
	env := newTestEnv(t)
	m := method("find where enabled = true order by age")

	records, err := env.exec.Find(context.Background(), env.plan(t, m), args(m))
	require.NoError(t, err)
	assert.Equal(t, []string{"dave", "bob", "alice"}, usernames(records))
	assert.Equal(t, 1, env.provider.acquired)
	assert.Equal(t, 1, env.provider.released)
}

func TestFindDecodesFieldTypes(t *testing.T) {
	env := newTestEnv(t)
	m := method("find where username = :u", "u")

	records, err := env.exec.Find(context.Background(), env.plan(t, m), args(m, "alice"))
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "UserEntity", rec.Type)
	assert.Equal(t, []string{"id", "username", "email", "enabled", "age", "createdAt"}, rec.Names)
	assert.Equal(t, map[string]any{
		"id":        aliceID,
		"username":  "alice",
		"email":     "alice@example.com",
		"enabled":   true,
		"age":       int64(30),
		"createdAt": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, rec.Map())
}

func TestFindProjectionThroughRelation(t *testing.T) {
	env := newTestEnv(t)
	m := method("select new UserSummary(id, username) from UserEntity where profile.country = :c order by username", "c")

	records, err := env.exec.Find(context.Background(), env.plan(t, m), args(m, "NZ"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "UserSummary", records[0].Type)
	assert.Equal(t, []string{"id", "username"}, records[0].Names)
	assert.Equal(t, []any{aliceID, "alice"}, records[0].Values)
	assert.Equal(t, []string{"alice", "carol"}, usernames(records))
}

func TestFindTuple(t *testing.T) {
	env := newTestEnv(t)
	m := method("select u.username from UserEntity u where u.age > :a order by u.username", "a")

	records, err := env.exec.Find(context.Background(), env.plan(t, m), args(m, 26))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, usernames(records))
	assert.Empty(t, records[0].Type)
}

func TestFindMembershipAndNull(t *testing.T) {
	env := newTestEnv(t)
	m := method("find where username in :names and email is not null order by username", "names")

	records, err := env.exec.Find(context.Background(), env.plan(t, m), args(m, []string{"alice", "bob", "carol"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, usernames(records))
}

func TestFindIgnoreCase(t *testing.T) {
	env := newTestEnv(t)
	m := method("find where lower(username) = lower(:u)", "u")

	records, err := env.exec.Find(context.Background(), env.plan(t, m), args(m, "ALICE"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, usernames(records))
}

func TestFindRespectsLimit(t *testing.T) {
	env := newTestEnv(t)
	m := method("find order by createdAt desc limit 2")

	records, err := env.exec.Find(context.Background(), env.plan(t, m), args(m))
	require.NoError(t, err)
	assert.Equal(t, []string{"dave", "carol"}, usernames(records))
}

func TestCount(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int64
	}{
		{"all", "find", 4},
		{"filtered", "find where enabled = true", 3},
		{"capped by limit", "find where enabled = true limit 2", 2},
		{"distinct", "select distinct u from UserEntity u where u.age < 40", 3},
		{"nothing", "find where age > 100", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			m := method(tt.query)
			n, err := env.exec.Count(context.Background(), env.plan(t, m), args(m))
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestExists(t *testing.T) {
	env := newTestEnv(t)
	m := method("find where username = :u", "u")
	plan := env.plan(t, m)

	found, err := env.exec.Exists(context.Background(), plan, args(m, "bob"))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = env.exec.Exists(context.Background(), plan, args(m, "zed"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindPage(t *testing.T) {
	env := newTestEnv(t)
	m := method("find order by username")

	page, err := env.exec.FindPage(context.Background(), env.plan(t, m), args(m), Pagination{Page: 1, Size: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"dave"}, usernames(page.Items))
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.TotalPages())
	assert.Equal(t, env.provider.acquired, env.provider.released)
}

func TestFindPageWithinLimit(t *testing.T) {
	env := newTestEnv(t)
	m := method("find order by username limit 3")
	plan := env.plan(t, m)

	page, err := env.exec.FindPage(context.Background(), plan, args(m), Pagination{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, usernames(page.Items))
	assert.Equal(t, int64(3), page.Total)

	page, err = env.exec.FindPage(context.Background(), plan, args(m), Pagination{Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Equal(t, int64(3), page.Total)
}

func TestFindPageRejectsBadPagination(t *testing.T) {
	env := newTestEnv(t)
	m := method("find")

	_, err := env.exec.FindPage(context.Background(), env.plan(t, m), args(m), Pagination{Page: 0, Size: 0})
	require.Error(t, err)
	assert.True(t, querydef.IsExecutionBindingError(err))
	assert.Zero(t, env.provider.acquired)
}

func TestPaginationValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Pagination
		wantErr bool
	}{
		{"first page", Pagination{Page: 0, Size: 10}, false},
		{"largest offset", Pagination{Page: math.MaxInt / 10, Size: 10}, false},
		{"negative page", Pagination{Page: -1, Size: 10}, true},
		{"zero size", Pagination{Page: 0, Size: 0}, true},
		{"offset overflow", Pagination{Page: math.MaxInt/10 + 1, Size: 10}, true},
		{"huge page and size", Pagination{Page: math.MaxInt, Size: math.MaxInt}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.GreaterOrEqual(t, tt.p.Offset(), 0)
		})
	}
}

func TestFindPageRejectsOverflowingOffset(t *testing.T) {
	env := newTestEnv(t)
	m := method("find")

	_, err := env.exec.FindPage(context.Background(), env.plan(t, m), args(m), Pagination{Page: math.MaxInt / 2, Size: 4})
	require.Error(t, err)
	assert.True(t, querydef.IsExecutionBindingError(err))
	assert.Zero(t, env.provider.acquired)
}

func TestNative(t *testing.T) {
	env := newTestEnv(t)
	m := native("select * from users where age >= :a order by age", "a")
	plan := env.plan(t, m)
	ctx := context.Background()

	records, err := env.exec.Find(ctx, plan, args(m, 25))
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice", "carol"}, usernames(records))
	assert.Equal(t, "UserEntity", records[0].Type)
	createdAt, ok := records[0].Get("createdAt")
	require.True(t, ok)
	assert.IsType(t, time.Time{}, createdAt)

	n, err := env.exec.Count(ctx, plan, args(m, 25))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	found, err := env.exec.Exists(ctx, plan, args(m, 99))
	require.NoError(t, err)
	assert.False(t, found)

	page, err := env.exec.FindPage(ctx, plan, args(m, 25), Pagination{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, usernames(page.Items))
	assert.Equal(t, int64(3), page.Total)
}

func TestNativeCollectionArgument(t *testing.T) {
	env := newTestEnv(t)
	m := native("select username, age from users where username in (?1) order by username", "names")

	records, err := env.exec.Find(context.Background(), env.plan(t, m), args(m, []string{"bob", "dave"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "dave"}, usernames(records))
	assert.Empty(t, records[0].Type)
	age, _ := records[0].Get("age")
	assert.Equal(t, int64(25), age)
}

func TestNativeCountQuery(t *testing.T) {
	env := newTestEnv(t)
	m := native("select count(*) from users where enabled = :e", "e")
	m.Returns = schema.ResultCount

	out, err := env.exec.Execute(context.Background(), env.plan(t, m), args(m, true))
	require.NoError(t, err)
	assert.Equal(t, querydef.ActionCount, out.Action)
	assert.Equal(t, int64(3), out.Count)
}

func TestNativeCountQueryAsExists(t *testing.T) {
	env := newTestEnv(t)
	m := native("select count(*) from users where username = :u", "u")
	m.Returns = schema.ResultBool
	plan := env.plan(t, m)
	ctx := context.Background()

	found, err := env.exec.Exists(ctx, plan, args(m, "nobody"))
	require.NoError(t, err)
	assert.False(t, found)

	out, err := env.exec.Execute(ctx, plan, args(m, "carol"))
	require.NoError(t, err)
	assert.Equal(t, querydef.ActionExists, out.Action)
	assert.True(t, out.Exists)
}

func TestDistinctTupleCountMatchesFind(t *testing.T) {
	env := newTestEnv(t)
	m := method("select distinct u.enabled from UserEntity u")
	plan := env.plan(t, m)
	ctx := context.Background()

	records, err := env.exec.Find(ctx, plan, args(m))
	require.NoError(t, err)
	require.Len(t, records, 2)

	n, err := env.exec.Count(ctx, plan, args(m))
	require.NoError(t, err)
	assert.Equal(t, int64(len(records)), n)

	page, err := env.exec.FindPage(ctx, plan, args(m), Pagination{Page: 0, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 2)
}

func TestExecuteDispatchesByAction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	count := schema.Method{
		Owner:   "UserStorage",
		Name:    "countByEnabled",
		Params:  []schema.Param{{Name: "enabled", Type: "bool"}},
		Returns: schema.ResultCount,
	}
	out, err := env.exec.Execute(ctx, env.plan(t, count), args(count, true))
	require.NoError(t, err)
	assert.Equal(t, querydef.ActionCount, out.Action)
	assert.Equal(t, int64(3), out.Count)

	exists := schema.Method{
		Owner:   "UserStorage",
		Name:    "existsByUsername",
		Params:  []schema.Param{{Name: "username", Type: "string"}},
		Returns: schema.ResultBool,
	}
	out, err = env.exec.Execute(ctx, env.plan(t, exists), args(exists, "carol"))
	require.NoError(t, err)
	assert.Equal(t, querydef.ActionExists, out.Action)
	assert.True(t, out.Exists)

	find := schema.Method{
		Owner:   "UserStorage",
		Name:    "findByProfileCountryOrderByUsernameDesc",
		Params:  []schema.Param{{Name: "country", Type: "string"}},
		Returns: schema.ResultList,
	}
	out, err = env.exec.Execute(ctx, env.plan(t, find), args(find, "NZ"))
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "alice"}, usernames(out.Records))
}

func TestBackendErrorReleasesConnection(t *testing.T) {
	env := newTestEnv(t)
	m := native("select * from missing_table")

	_, err := env.exec.Find(context.Background(), env.plan(t, m), args(m))
	require.Error(t, err)
	assert.True(t, querydef.IsBackendError(err))
	assert.NotNil(t, errors.Unwrap(err), "backend error must unwrap to the driver error")
	assert.Equal(t, 1, env.provider.acquired)
	assert.Equal(t, 1, env.provider.released)
}

func TestAcquireFailure(t *testing.T) {
	env := newTestEnv(t)
	cause := errors.New("pool exhausted")
	env.provider.failAcquire = cause
	m := method("find")

	_, err := env.exec.Find(context.Background(), env.plan(t, m), args(m))
	require.Error(t, err)
	assert.True(t, querydef.IsBackendError(err))
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, env.provider.released)
}

func TestBindingErrorSkipsBackend(t *testing.T) {
	env := newTestEnv(t)
	m := method("find where username in :names", "names")

	_, err := env.exec.Find(context.Background(), env.plan(t, m), args(m, "alice"))
	require.Error(t, err)
	assert.True(t, querydef.IsExecutionBindingError(err))
	assert.Zero(t, env.provider.acquired)
}

func TestCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	m := method("find")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.exec.Find(ctx, env.plan(t, m), args(m))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, env.provider.acquired)
}
