package cli

import (
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/dynquery/internal/compiler"
	"github.com/roach88/dynquery/internal/executor"
	"github.com/roach88/dynquery/internal/parser"
	"github.com/roach88/dynquery/internal/querysql"
	"github.com/roach88/dynquery/internal/repository"
	"github.com/roach88/dynquery/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.RelationWarning `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate declarations and parse every method",
		Long: `Validate storage declarations without rendering SQL.

Checks the CUE syntax, the declaration rules, and parses every method's
query so binding and property errors surface before anything runs.
Relation cycles are reported as warnings.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := compiler.LoadDir(specsDir, compiler.LoadModeCollectAll)
	if loadResult == nil {
		e := loadCLIError(loadErrors[0])
		return outputValidateError(formatter, e.Code, e.Message)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		validationErrors = append(validationErrors, loadValidationError(err))
	}
	if len(validationErrors) == 0 {
		validationErrors = append(validationErrors, compiler.Validate(loadResult.Catalog)...)
	}
	if len(validationErrors) == 0 {
		validationErrors = append(validationErrors, validateMethods(opts, loadResult.Catalog, formatter)...)
	}

	warnings := compiler.AnalyzeRelations(loadResult.Catalog)
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors, warnings)
	}
	return outputValidateSuccess(formatter, warnings)
}

// validateMethods parses and plans every method of every storage.
func validateMethods(opts *RootOptions, cat *schema.Catalog, formatter *OutputFormatter) []compiler.ValidationError {
	// Registration never touches the database; the dialect only affects rendering.
	chain := parser.NewChain(parser.Options{Fallback: opts.Config().Parser.FallbackPolicy(), Logger: opts.Logger()})
	repo := repository.New(cat, chain, executor.New(nil, querysql.DialectSQLite), opts.Logger())

	var errs []compiler.ValidationError
	for _, name := range cat.StorageNames() {
		formatter.VerboseLog("Validating storage: %s", name)
		err := repo.Register(name)
		if err == nil {
			continue
		}
		for _, e := range compileCLIErrors(err) {
			errs = append(errs, compiler.ValidationError{
				Field:   "storage." + name,
				Message: e.Message,
				Code:    e.Code,
			})
		}
	}
	return errs
}

// loadValidationError converts a load error to a validation error.
func loadValidationError(err error) compiler.ValidationError {
	e := compileCLIErrors(err)[0]
	v := compiler.ValidationError{Field: "load", Message: e.Message, Code: e.Code}
	if le, ok := err.(*compiler.LoadError); ok {
		v.Line = lineOf(le.Pos)
	}
	return v
}

// lineOf extracts the line number from a token.Pos.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, warnings []compiler.RelationWarning) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Warnings: warnings})
	}

	printRelationWarnings(formatter, warnings)
	fmt.Fprintln(formatter.Writer, "✓ All specs valid")
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError, warnings []compiler.RelationWarning) error {
	if formatter.JSON() {
		if err := formatter.Emit(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs, Warnings: warnings},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}
	printRelationWarnings(formatter, warnings)

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func printRelationWarnings(formatter *OutputFormatter, warnings []compiler.RelationWarning) {
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "%s: %s\n", w.Level, w.Message)
	}
}
