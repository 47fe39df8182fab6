package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Conn is the query surface a borrowed connection exposes.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Provider lends connections to the executor. Every successful Acquire is
// paired with exactly one Release.
type Provider interface {
	Acquire(ctx context.Context) (Conn, error)
	Release(conn Conn) error
}

// Acquire borrows one connection from the pool.
func (s *Store) Acquire(ctx context.Context) (Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

// Release returns a connection obtained from Acquire to the pool.
func (s *Store) Release(conn Conn) error {
	c, ok := conn.(*sql.Conn)
	if !ok {
		return fmt.Errorf("release connection: unexpected type %T", conn)
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("release connection: %w", err)
	}
	return nil
}
