package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/dynquery/internal/querydef"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query, validation, or scenario failure
	ExitCommandError = 2 // Command error (invalid paths, bad config, unloadable specs)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload, or the full error list
	Error  *CLIError `json:"error,omitempty"` // first error
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E201", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether the formatter writes JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return f.Emit(CLIResponse{Status: "ok", Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return f.Emit(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// QueryError outputs err, using its QueryError code when it carries one.
func (f *OutputFormatter) QueryError(err error) error {
	var qe *querydef.QueryError
	if errors.As(err, &qe) {
		details := map[string]string{}
		if qe.Method != "" {
			details["method"] = qe.Method
		}
		if qe.Fragment != "" {
			details["fragment"] = qe.Fragment
		}
		if len(details) == 0 {
			return f.Error(string(qe.Code), err.Error(), nil)
		}
		return f.Error(string(qe.Code), err.Error(), details)
	}
	return f.Error(ErrCodeGeneric, err.Error(), nil)
}

// Emit writes an indented JSON response.
func (f *OutputFormatter) Emit(response CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
