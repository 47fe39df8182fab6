// Package executor runs planned queries against a store.Provider.
//
// Each call borrows one connection, renders its SQL with querysql, scans
// the rows, and gives the connection back before returning, on success
// and failure alike. Nothing is cached between calls and no statement is
// retried. Failures reported by the database come back as
// BACKEND_EXECUTION_ERROR (E302) and unwrap to the driver error.
//
// Row values are decoded to the declared field types with store.Decode, so
// callers see string, int64, float64, bool, and time.Time regardless of
// driver.
package executor
