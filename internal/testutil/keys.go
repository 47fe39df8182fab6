package testutil

import (
	"fmt"
	"sync"
)

// SequentialKeyGenerator hands out predictable UUID-shaped keys.
//
// Keys are "00000000-0000-7000-8000-000000000001", "...0002", and so on,
// so they sort in generation order like real UUIDv7 keys. The same
// scenario with a fresh generator produces identical rows.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequentialKeyGenerator struct {
	mu   sync.Mutex
	next int64
}

// NewSequentialKeyGenerator creates a generator whose first key ends in 1.
func NewSequentialKeyGenerator() *SequentialKeyGenerator {
	return &SequentialKeyGenerator{}
}

// NewKey returns the next key. It never fails.
//
// Implements store.KeyGenerator.
func (g *SequentialKeyGenerator) NewKey() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", g.next), nil
}
