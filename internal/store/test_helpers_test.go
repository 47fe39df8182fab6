package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/dynquery/internal/schema"
)

// createTestStore creates a migrated file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background(), testCatalog()); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	return s
}

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
			{Name: "score", Column: "score", Type: schema.TypeFloat, Nullable: true},
			{Name: "createdAt", Column: "created_at", Type: schema.TypeTime},
		},
	}
	cat.Entities["Counter"] = &schema.Entity{
		Name:  "Counter",
		Table: "counters",
		Key:   "id",
		Fields: []schema.Field{
			{Name: "id", Column: "id", Type: schema.TypeInt},
			{Name: "label", Column: "label", Type: schema.TypeString},
		},
	}
	return cat
}
