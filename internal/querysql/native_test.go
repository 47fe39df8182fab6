package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynquery/internal/binding"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/schema"
)

func nativeCall(query string, params []string, values ...any) call {
	return call{query: query, native: true, params: params, values: values}
}

func TestNativeGolden(t *testing.T) {
	tests := []struct {
		golden  string
		dialect Dialect
		call    call
		render  func(*Compiler, *testing.T, call) (string, []any, error)
	}{
		{
			golden: "native_find",
			call:   nativeCall("select * from users where username = :u and age > ?2", []string{"u", "a"}, "alice", 3),
			render: nativeFind,
		},
		{
			golden:  "native_postgres_expand",
			dialect: DialectPostgres,
			call: nativeCall("select * from users where username in (:names) and created_at::date = :day",
				[]string{"names", "day"}, []string{"a", "b"}, "2024-01-01"),
			render: nativeFind,
		},
		{
			golden: "native_empty_collection",
			call:   nativeCall("select * from users where username in (:names)", []string{"names"}, []string{}),
			render: nativeFind,
		},
		{
			golden: "native_count",
			call:   nativeCall("select id from users where enabled = true;", nil),
			render: nativeCount,
		},
		{
			golden: "native_exists",
			call:   nativeCall("select * from users where username = :u", []string{"u"}, "alice"),
			render: nativeExists,
		},
		{
			golden: "native_page",
			call:   nativeCall("select * from users order by username limit 50", nil),
			render: nativePage(10, 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			dialect := tt.dialect
			if dialect == "" {
				dialect = DialectSQLite
			}
			sql, args, err := tt.render(NewCompiler(dialect), t, tt.call)
			require.NoError(t, err)
			assertGolden(t, tt.golden, sql, args)
		})
	}
}

func nativeFind(c *Compiler, t *testing.T, cl call) (string, []any, error) {
	return c.NativeFind(cl.definition(t), cl.args())
}

func nativeCount(c *Compiler, t *testing.T, cl call) (string, []any, error) {
	return c.NativeCount(cl.definition(t), cl.args())
}

func nativeExists(c *Compiler, t *testing.T, cl call) (string, []any, error) {
	return c.NativeExists(cl.definition(t), cl.args())
}

func nativePage(offset, size int) func(*Compiler, *testing.T, call) (string, []any, error) {
	return func(c *Compiler, t *testing.T, cl call) (string, []any, error) {
		return c.NativePage(cl.definition(t), cl.args(), offset, size)
	}
}

func TestNativeCountQueryRunsUnchanged(t *testing.T) {
	cl := nativeCall("select count(*) from users where enabled = :e", []string{"e"}, true)
	m := cl.method()
	m.Returns = schema.ResultCount

	def := parseMethod(t, m)
	require.Equal(t, querydef.ActionCount, def.Action())

	sql, args, err := NewCompiler(DialectSQLite).NativeCount(def, binding.NewArguments(m, cl.values))
	require.NoError(t, err)
	assert.Equal(t, "select count(*) from users where enabled = ?", sql)
	assert.Equal(t, []any{true}, args)
}

func TestNativeQuotedPlaceholdersUntouched(t *testing.T) {
	cl := nativeCall("select * from users where username = ':literal' and age = :a", []string{"a"}, 5)

	sql, args, err := NewCompiler(DialectPostgres).NativeFind(cl.definition(t), cl.args())
	require.NoError(t, err)
	assert.Equal(t, "select * from users where username = ':literal' and age = $1", sql)
	assert.Equal(t, []any{5}, args)
}

func TestNativeMissingArgument(t *testing.T) {
	cl := nativeCall("select * from users where username = :u", []string{"u"})

	_, _, err := NewCompiler(DialectSQLite).NativeFind(cl.definition(t), cl.args())
	require.Error(t, err)
	assert.True(t, querydef.IsExecutionBindingError(err))
}

func TestNativeExistsRunsCountUnchanged(t *testing.T) {
	cl := nativeCall("select count(*) from users where username = :u;", []string{"u"}, "alice")

	sql, args, err := NewCompiler(DialectSQLite).NativeExists(cl.definition(t), cl.args())
	require.NoError(t, err)
	assert.Equal(t, "select count(*) from users where username = ?", sql)
	assert.Equal(t, []any{"alice"}, args)
}
