// Package querydef defines the immutable query definition produced by the
// parsers and consumed by the planner and executor.
//
// This package contains value types only. Every other query package imports
// querydef; querydef imports nothing internal. A Definition is built once per
// declared storage method, never mutated afterwards, and shared freely across
// goroutines.
//
// Key design constraints:
//   - Definitions are immutable: constructors copy their inputs and accessors
//     return copies of every slice
//   - Exactly one value source per condition (named, positional, literal, or
//     none for null checks)
//   - Literal values are a sealed set of types (see Literal)
//   - Errors carry a stable code (E2xx parse time, E3xx call time)
package querydef
