package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dynquery/internal/compiler"
	"github.com/roach88/dynquery/internal/executor"
	"github.com/roach88/dynquery/internal/parser"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/querysql"
	"github.com/roach88/dynquery/internal/repository"
	"github.com/roach88/dynquery/internal/schema"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds every compiled method grouped by storage.
type CompilationResult struct {
	Dialect  querysql.Dialect `json:"dialect"`
	Entities int              `json:"entities"`
	Storages []StorageSummary `json:"storages"`
}

// StorageSummary lists the compiled methods of one storage.
type StorageSummary struct {
	Name    string          `json:"name"`
	Entity  string          `json:"entity"`
	Methods []MethodSummary `json:"methods"`
}

// MethodSummary describes one compiled method.
type MethodSummary struct {
	Name        string            `json:"name"`
	Action      querydef.Action   `json:"action"`
	Returns     schema.ResultKind `json:"returns"`
	Native      bool              `json:"native,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	SQL         string            `json:"sql"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile storage methods to SQL",
		Long: `Compile the storage declarations in a directory and render the SQL
of every method for the configured database dialect.

No database is opened. Every compile error is reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := compiler.LoadDir(specsDir, compiler.LoadModeCollectAll)
	if loadResult == nil {
		e := loadCLIError(loadErrors[0])
		return outputCompileError(formatter, e.Code, e.Message)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	cat := loadResult.Catalog
	if verrs := compiler.Validate(cat); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return outputCompileErrors(formatter, errs)
	}

	dialect, err := querysql.DialectFor(opts.Config().Database.Driver)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error())
	}

	result, errs := compileCatalog(cat, dialect, opts.Config().Parser.FallbackPolicy(), opts.Logger(), formatter)
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	if opts.Output != "" {
		if err := writeResultToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// compileCatalog registers every storage of cat without a database and
// renders each method's SQL. Registration errors of all storages are
// collected.
func compileCatalog(cat *schema.Catalog, dialect querysql.Dialect, policy parser.FallbackPolicy, logger *slog.Logger, formatter *OutputFormatter) (*CompilationResult, []error) {
	chain := parser.NewChain(parser.Options{Fallback: policy, Logger: logger})
	repo := repository.New(cat, chain, executor.New(nil, dialect), logger)
	sqlc := querysql.NewCompiler(dialect)

	result := &CompilationResult{
		Dialect:  dialect,
		Entities: len(cat.Entities),
		Storages: []StorageSummary{},
	}

	var errs []error
	for _, name := range cat.StorageNames() {
		formatter.VerboseLog("Compiling storage: %s", name)
		if err := repo.Register(name); err != nil {
			errs = append(errs, err)
			continue
		}

		s, _ := cat.Storage(name)
		summary := StorageSummary{Name: name, Entity: s.Entity, Methods: []MethodSummary{}}
		for _, m := range s.Methods {
			e, _ := repo.Lookup(m.Ref().String())
			sql, err := renderSQL(sqlc, e)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			summary.Methods = append(summary.Methods, MethodSummary{
				Name:        m.Name,
				Action:      e.Definition.Action(),
				Returns:     m.Returns,
				Native:      m.Native,
				Fingerprint: e.Fingerprint,
				SQL:         sql,
				Warnings:    e.Portability.Warnings,
			})
		}
		result.Storages = append(result.Storages, summary)
	}
	return result, errs
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	methods := 0
	for _, s := range result.Storages {
		methods += len(s.Methods)
	}
	fmt.Fprintf(w, "✓ Compiled %d storage(s), %d method(s) for %s\n\n", len(result.Storages), methods, result.Dialect)

	for _, s := range result.Storages {
		fmt.Fprintf(w, "%s (%s):\n", s.Name, s.Entity)
		for _, m := range s.Methods {
			fmt.Fprintf(w, "  %s → %s\n", m.Name, m.Returns)
			fmt.Fprintf(w, "    %s\n", m.SQL)
			for _, warning := range m.Warnings {
				fmt.Fprintf(w, "    warning: %s\n", warning)
			}
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote compiled methods to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, 0, len(errs))
	for _, err := range errs {
		cliErrors = append(cliErrors, compileCLIErrors(err)...)
	}

	if formatter.JSON() {
		if err := formatter.Emit(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(cliErrors)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		for _, e := range compileCLIErrors(err) {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Code, e.Message)
		}
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(cliErrors)))
}

// compileCLIErrors converts err into CLI errors. A joined registration
// error becomes one entry per method failure.
func compileCLIErrors(err error) []CLIError {
	if joined, ok := errors.Unwrap(err).(interface{ Unwrap() []error }); ok {
		var out []CLIError
		for _, e := range joined.Unwrap() {
			out = append(out, compileCLIErrors(e)...)
		}
		return out
	}

	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return []CLIError{{Code: loadErr.Code, Message: loadErr.Message}}
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return []CLIError{{Code: verr.Code, Message: verr.Error()}}
	}
	if code := querydef.CodeOf(err); code != "" {
		return []CLIError{{Code: string(code), Message: err.Error()}}
	}
	return []CLIError{{Code: ErrCodeGeneric, Message: err.Error()}}
}

// writeResultToFile writes the compilation result to a file as indented JSON.
func writeResultToFile(result *CompilationResult, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := writeResult(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeResult(w io.Writer, result *CompilationResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
