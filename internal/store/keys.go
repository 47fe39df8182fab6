package store

import "github.com/google/uuid"

// KeyGenerator produces primary keys for uuid-keyed rows inserted without one.
type KeyGenerator interface {
	NewKey() (string, error)
}

// UUIDv7Generator generates time-sortable UUIDv7 keys.
//
// UUIDv7 embeds a timestamp in the most significant bits, so rows keyed
// this way sort in insertion order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewKey returns a new hyphenated UUIDv7.
func (UUIDv7Generator) NewKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// SetKeyGenerator replaces the generator used for missing uuid keys.
// A nil generator restores UUIDv7Generator.
func (s *Store) SetKeyGenerator(g KeyGenerator) {
	if g == nil {
		g = UUIDv7Generator{}
	}
	s.keys = g
}
