package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/dynquery/internal/querysql"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Dialect() != querysql.DialectSQLite {
		t.Errorf("Dialect() = %q, want sqlite", s.Dialect())
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "root@/db"); err == nil {
		t.Fatal("Open() with unsupported driver should fail")
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.want); err != nil {
			t.Error(err)
		}
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	s := createTestStore(t)

	for _, table := range []string{"users", "counters"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := createTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.Migrate(context.Background(), testCatalog()); err != nil {
			t.Fatalf("Migrate() iteration %d failed: %v", i, err)
		}
	}
}

func TestCreateTable_Postgres(t *testing.T) {
	s := &Store{dialect: querysql.DialectPostgres}

	ddl, err := s.createTable(testCatalog().Entities["UserEntity"])
	if err != nil {
		t.Fatalf("createTable() failed: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS users (id UUID PRIMARY KEY, username TEXT NOT NULL, " +
		"email TEXT, enabled BOOLEAN NOT NULL, age BIGINT NOT NULL, score DOUBLE PRECISION, " +
		"created_at TIMESTAMPTZ NOT NULL)"
	if ddl != want {
		t.Errorf("createTable() =\n%s\nwant\n%s", ddl, want)
	}
}

func TestAcquireRelease(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// The pool holds one connection; a leaked Acquire would block the
	// second iteration.
	for i := 0; i < 2; i++ {
		conn, err := s.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() failed: %v", err)
		}
		var one int
		if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if err := s.Release(conn); err != nil {
			t.Fatalf("Release() failed: %v", err)
		}
	}
}

func TestOpenMemory(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Migrate(ctx, testCatalog()); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if _, err := s.Insert(ctx, testCatalog().Entities["Counter"], map[string]any{"id": 1, "label": "a"}); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	// The table must still be visible through a borrowed connection.
	conn, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	defer s.Release(conn)

	var count int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM counters").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
