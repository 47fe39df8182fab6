package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/dynquery/internal/executor"
	"github.com/roach88/dynquery/internal/harness"
	"github.com/roach88/dynquery/internal/repository"
	"github.com/roach88/dynquery/internal/schema"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Page     int
	Size     int    // page size; a positive size selects a page
	Fixtures string // YAML file of rows to insert before invoking
}

// InvokeResult is the JSON payload of a successful invocation.
type InvokeResult struct {
	Method string `json:"method"`
	Kind   string `json:"kind"`
	Value  any    `json:"value"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <specs-dir> <Storage.method> [args...]",
		Short: "Invoke a storage method against the configured database",
		Long: `Invoke one storage method with positional arguments.

Each argument is decoded as a YAML scalar or sequence, so 42 is an int,
true a bool, null a null, and [a, b] a collection. Quote an argument to
keep it a string: '"42"'.

The configured database is migrated first. With the default in-memory
database, --fixtures seeds rows for the invocation.

Examples:
  dynq invoke ./specs UserStorage.findByEmail alice@example.com
  dynq invoke ./specs UserStorage.findByStatusIn '[active, locked]'
  dynq invoke ./specs UserStorage.findActive --page 0 --size 10 --fixtures users.yaml`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeMethod(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", 0, "zero-based page number (page methods)")
	cmd.Flags().IntVar(&opts.Size, "size", 0, "page size (page methods)")
	cmd.Flags().StringVar(&opts.Fixtures, "fixtures", "", "YAML file of fixture rows to insert first")

	return cmd
}

func invokeMethod(opts *InvokeOptions, specsDir, method string, rawArgs []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	args, err := decodeArguments(rawArgs)
	if err != nil {
		_ = formatter.Error(ErrCodeBadArgument, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid argument", err)
	}

	cat, cliErr := loadCatalog(specsDir, formatter)
	if cliErr != nil {
		_ = formatter.Error(cliErr.Code, cliErr.Message, cliErr.Details)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", cliErr.Code, cliErr.Message))
	}

	sess, err := openSession(ctx, opts.Config(), cat, opts.Logger())
	if err != nil {
		return outputSessionError(formatter, err)
	}
	defer sess.Close()

	if opts.Fixtures != "" {
		if err := insertFixtureFile(ctx, sess, opts.Fixtures); err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to insert fixtures", err)
		}
	}

	if _, ok := sess.repo.Lookup(method); !ok {
		_ = formatter.Error(ErrCodeUnknownMethod, fmt.Sprintf("method not declared: %q", method), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("method not declared: %q", method))
	}

	var res *repository.Result
	if opts.Size > 0 {
		res, err = sess.repo.InvokePage(ctx, method, executor.Pagination{Page: opts.Page, Size: opts.Size}, args...)
	} else {
		res, err = sess.repo.Invoke(ctx, method, args...)
	}
	if err != nil {
		_ = formatter.QueryError(err)
		return WrapExitError(ExitFailure, "invocation failed", err)
	}

	result := InvokeResult{Method: method, Kind: string(res.Kind), Value: harness.ResultValue(res)}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputInvokeText(formatter, res)
}

// decodeArguments decodes each raw argument as YAML.
func decodeArguments(raw []string) ([]any, error) {
	args := make([]any, len(raw))
	for i, s := range raw {
		var v any
		if err := yaml.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		args[i] = v
	}
	return args, nil
}

// insertFixtureFile inserts the fixtures listed in a YAML file, in the
// scenario fixture format.
func insertFixtureFile(ctx context.Context, sess *session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixtures: %w", err)
	}

	var fixtures []harness.Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fixtures); err != nil {
		return fmt.Errorf("failed to parse fixtures: %w", err)
	}

	for i, f := range fixtures {
		e, ok := sess.catalog.Entity(f.Entity)
		if !ok {
			return fmt.Errorf("fixtures[%d]: unknown entity %q", i, f.Entity)
		}
		if err := sess.store.InsertAll(ctx, e, f.Rows); err != nil {
			return fmt.Errorf("fixtures[%d]: %w", i, err)
		}
	}
	return nil
}

// outputInvokeText prints a result: one JSON line per record, or the
// scalar value.
func outputInvokeText(formatter *OutputFormatter, res *repository.Result) error {
	w := formatter.Writer
	switch res.Kind {
	case schema.ResultCount:
		fmt.Fprintln(w, res.Count)
		return nil
	case schema.ResultBool:
		fmt.Fprintln(w, res.Exists)
		return nil
	case schema.ResultOne:
		if res.Record == nil {
			fmt.Fprintln(w, "(no record)")
			return nil
		}
		return printRecords(w, []executor.Record{*res.Record})
	case schema.ResultPage:
		if err := printRecords(w, res.Page.Items); err != nil {
			return err
		}
		fmt.Fprintf(w, "page %d of %d (%d total)\n", res.Page.Page+1, res.Page.TotalPages(), res.Page.Total)
		return nil
	default:
		if err := printRecords(w, res.Records); err != nil {
			return err
		}
		fmt.Fprintf(w, "%d record(s)\n", len(res.Records))
		return nil
	}
}

func printRecords(w io.Writer, records []executor.Record) error {
	encoder := json.NewEncoder(w)
	for _, r := range records {
		if err := encoder.Encode(r.Map()); err != nil {
			return err
		}
	}
	return nil
}
