package querydef

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a stable identifier for a query failure.
// E2xx codes are raised while parsing or registering; E3xx at call time.
type ErrorCode string

const (
	ErrCodeSyntax           ErrorCode = "E201"
	ErrCodeParameterBinding ErrorCode = "E202"
	ErrCodeUnknownProperty  ErrorCode = "E203"
	ErrCodeExecutionBinding ErrorCode = "E301"
	ErrCodeBackend          ErrorCode = "E302"
)

// QueryError is the error type returned by every query package.
type QueryError struct {
	Code     ErrorCode
	Method   string // "Owner.name" of the failing method, if known
	Query    string // query text, if known
	Fragment string // offending fragment, if any
	Message  string
	Err      error // underlying cause (backend errors)
}

func (e *QueryError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Fragment != "" {
		fmt.Fprintf(&b, " %q", e.Fragment)
	}
	if e.Method != "" {
		fmt.Fprintf(&b, " (method=%s)", e.Method)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewSyntaxError reports query text the parser could not interpret.
func NewSyntaxError(method MethodRef, query, fragment, message string) *QueryError {
	return &QueryError{Code: ErrCodeSyntax, Method: method.String(), Query: query, Fragment: fragment, Message: message}
}

// NewParameterBindingError reports a mismatch between substitutions and the
// method's declared parameters.
func NewParameterBindingError(method MethodRef, query, fragment, message string) *QueryError {
	return &QueryError{Code: ErrCodeParameterBinding, Method: method.String(), Query: query, Fragment: fragment, Message: message}
}

// NewUnknownPropertyError reports an attribute path that does not resolve
// against the entity schema.
func NewUnknownPropertyError(method MethodRef, query, path string) *QueryError {
	return &QueryError{Code: ErrCodeUnknownProperty, Method: method.String(), Query: query, Fragment: path, Message: "unknown property"}
}

// NewExecutionBindingError reports call-time arguments that cannot satisfy
// the definition.
func NewExecutionBindingError(method MethodRef, message string) *QueryError {
	return &QueryError{Code: ErrCodeExecutionBinding, Method: method.String(), Message: message}
}

// NewBackendError wraps a failure reported by the database.
func NewBackendError(method MethodRef, query string, err error) *QueryError {
	return &QueryError{Code: ErrCodeBackend, Method: method.String(), Query: query, Message: "backend execution failed", Err: err}
}

// CodeOf returns the code of the first QueryError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// IsSyntaxError checks if an error is a query syntax error.
func IsSyntaxError(err error) bool { return CodeOf(err) == ErrCodeSyntax }

// IsParameterBindingError checks if an error is a parameter binding error.
func IsParameterBindingError(err error) bool { return CodeOf(err) == ErrCodeParameterBinding }

// IsUnknownPropertyError checks if an error is an unknown property error.
func IsUnknownPropertyError(err error) bool { return CodeOf(err) == ErrCodeUnknownProperty }

// IsExecutionBindingError checks if an error is a call-time binding error.
func IsExecutionBindingError(err error) bool { return CodeOf(err) == ErrCodeExecutionBinding }

// IsBackendError checks if an error came from the database.
func IsBackendError(err error) bool { return CodeOf(err) == ErrCodeBackend }
