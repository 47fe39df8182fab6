package attribute

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/dynquery/internal/querydef"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"username", "username"},
		{"Username", "username"},
		{"created_at", "createdAt"},
		{"CREATED_AT", "createdAt"},
		{"user__name", "userName"},
		{"createdAt", "createdAt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, name := range []string{"created_at", "Username", "lastLoginAt", "A_B_C", "x"} {
		once := Normalize(name)
		assert.Equal(t, once, Normalize(once), "Normalize(%q) must be idempotent", name)
	}
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "created_at", SnakeCase("createdAt"))
	assert.Equal(t, "username", SnakeCase("username"))
	assert.Equal(t, "user_id", SnakeCase("userID"))
	assert.Equal(t, "http_server", SnakeCase("HTTPServer"))
	assert.Equal(t, "id", SnakeCase("id"))
}

func TestUnwrap(t *testing.T) {
	inner, fn := Unwrap("lower(u.username)")
	assert.Equal(t, "u.username", inner)
	assert.Equal(t, querydef.CaseLower, fn)

	inner, fn = Unwrap("UPPER( email )")
	assert.Equal(t, "email", inner)
	assert.Equal(t, querydef.CaseUpper, fn)

	inner, fn = Unwrap("  enabled ")
	assert.Equal(t, "enabled", inner)
	assert.Equal(t, querydef.CaseNone, fn)
}

func TestExtractAliases(t *testing.T) {
	aliases := ExtractAliases("from UserEntity u left join u.profile as p where u.enabled = true")
	assert.Equal(t, []string{"u", "p"}, aliases)
}

func TestExtractAliasesSkipsKeywords(t *testing.T) {
	assert.Empty(t, ExtractAliases("from UserEntity where enabled = true"))
	assert.Empty(t, ExtractAliases("from UserEntity order by username"))
	assert.Equal(t, []string{"u"}, ExtractAliases("FROM UserEntity AS u"))
}

func TestResolveKeepsDeclaredAlias(t *testing.T) {
	r := ForQuery("from UserEntity u where u.created_at > :since")

	path := r.Resolve("u.created_at")
	assert.Equal(t, "u.createdAt", path.Name)
	assert.Equal(t, "u.created_at", path.Raw)
	assert.Equal(t, querydef.CaseNone, path.Case)
}

func TestResolveNormalizesUndeclaredPrefix(t *testing.T) {
	r := NewResolver("u")

	path := r.Resolve("Profile.country_code")
	assert.Equal(t, "profile.countryCode", path.Name)
}

func TestResolveRecordsCaseFunction(t *testing.T) {
	r := NewResolver("u")

	path := r.Resolve("lower(u.username)")
	assert.Equal(t, "u.username", path.Name)
	assert.Equal(t, querydef.CaseLower, path.Case)
	assert.Equal(t, []string{"u", "username"}, path.Segments())
}

func TestIgnoreCase(t *testing.T) {
	assert.True(t, IgnoreCase(querydef.CaseLower, querydef.CaseLower))
	assert.True(t, IgnoreCase(querydef.CaseUpper, querydef.CaseUpper))
	assert.False(t, IgnoreCase(querydef.CaseLower, querydef.CaseNone))
	assert.False(t, IgnoreCase(querydef.CaseLower, querydef.CaseUpper))
	assert.False(t, IgnoreCase(querydef.CaseNone, querydef.CaseNone))
}
