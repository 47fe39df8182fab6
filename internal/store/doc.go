// Package store opens the database the query engine runs against and
// manages the tables declared by a catalog.
//
// Two drivers are supported:
//   - sqlite3 (mattn/go-sqlite3): the default, also used in-memory by tests
//   - pgx (jackc/pgx/v5 stdlib): PostgreSQL
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The executor never touches *sql.DB directly. It borrows one connection
// per call through the Provider interface and gives it back on every path.
//
// Fixture rows are written with Insert. Values are encoded to the column's
// declared type on the way in and decoded back on the way out (see Encode
// and Decode), so both drivers hand the executor the same Go types.
package store
