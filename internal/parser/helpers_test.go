package parser

import (
	"io"
	"log/slog"

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
	cat.Projections["UserSummary"] = &schema.Projection{
		Name:   "UserSummary",
		Fields: []string{"id", "username"},
	}
	cat.Storages["UserStorage"] = &schema.Storage{Name: "UserStorage", Entity: "UserEntity"}
	return cat
}

func param(name string) schema.Param {
	return schema.Param{Name: name, Type: "string"}
}

func queryMethod(query string, params ...schema.Param) schema.Method {
	return schema.Method{
		Owner:   "UserStorage",
		Name:    "query",
		Query:   query,
		Params:  params,
		Returns: schema.ResultList,
	}
}

func nativeMethod(query string, params ...schema.Param) schema.Method {
	m := queryMethod(query, params...)
	m.Native = true
	return m
}

func derivedMethod(name string, returns schema.ResultKind, params ...schema.Param) schema.Method {
	return schema.Method{
		Owner:   "UserStorage",
		Name:    name,
		Params:  params,
		Returns: returns,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func warnParser() *Structured {
	return NewStructured(Options{Fallback: FallbackWarn, Logger: quietLogger()})
}

func strictParser() *Structured {
	return NewStructured(Options{Fallback: FallbackStrict, Logger: quietLogger()})
}
