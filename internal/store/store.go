package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/dynquery/internal/querysql"
)

// Store is an open database handle plus the dialect its SQL is written in.
type Store struct {
	db      *sql.DB
	driver  string
	dialect querysql.Dialect
	keys    KeyGenerator
}

// Open connects to the database named by driver and dsn.
// Supported drivers are "sqlite3" and "pgx".
//
// SQLite databases are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// An in-memory SQLite database lives as long as its single pooled
// connection, so the pool keeps exactly one.
func Open(driver, dsn string) (*Store, error) {
	dialect, err := querysql.DialectFor(driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == querysql.DialectSQLite {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return &Store{db: db, driver: driver, dialect: dialect, keys: UUIDv7Generator{}}, nil
}

// OpenMemory opens a private in-memory SQLite database.
func OpenMemory() (*Store, error) {
	return Open("sqlite3", ":memory:")
}

// SetMaxOpenConns bounds the connection pool. It has no effect on SQLite,
// which always runs with a single connection.
func (s *Store) SetMaxOpenConns(n int) {
	if s.dialect == querysql.DialectSQLite || n <= 0 {
		return
	}
	s.db.SetMaxOpenConns(n)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Dialect returns the SQL dialect of the store.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRowContext(context.Background(), query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if !strings.EqualFold(value, expected) {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
