// Package queryir resolves query definitions against the schema and binds
// them to call-time values.
//
// Two stages separate what can be checked once from what changes per call:
//
//	[Definition] --Plan--> [Plan] --Bind(args)--> [Select] --querysql--> SQL
//
// Plan runs at registration. It resolves every attribute path to a table
// alias and column, walks relations into joins, and fails with an
// UnknownPropertyError for anything the schema does not declare. A Plan is
// immutable and shared by every call of its method.
//
// Bind runs per call. It resolves substitutions to values, applies case
// folding and wildcards, and folds conditions left to right into a
// predicate tree.
//
// SEALED INTERFACES:
//
// Predicate is sealed with a marker method. Only this package defines
// predicates, so backends can switch over them exhaustively:
//
//	switch p := pred.(type) {
//	case Compare:
//	case Like:
//	case In:
//	case Null:
//	case And:
//	case Or:
//	}
//
// Validate reports plan features whose behavior differs across backends
// (right joins, case folding, LIKE on non-text columns). Such plans still
// execute; the warnings are informational.
package queryir
