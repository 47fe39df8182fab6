package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dynquery/internal/executor"
	"github.com/roach88/dynquery/internal/parser"
	"github.com/roach88/dynquery/internal/querydef"
	"github.com/roach88/dynquery/internal/querysql"
	"github.com/roach88/dynquery/internal/repository"
	"github.com/roach88/dynquery/internal/schema"
)

// ExplainResult describes how one method was parsed and what it runs.
type ExplainResult struct {
	Method      string           `json:"method"`
	Strategy    string           `json:"strategy"`
	Query       string           `json:"query,omitempty"`
	Action      querydef.Action  `json:"action"`
	Returns     string           `json:"returns"`
	Distinct    bool             `json:"distinct,omitempty"`
	Limit       *int             `json:"limit,omitempty"`
	Joins       []string         `json:"joins,omitempty"`
	Conditions  []string         `json:"conditions,omitempty"`
	Orders      []string         `json:"orders,omitempty"`
	Params      []string         `json:"params,omitempty"`
	Diagnostics []string         `json:"diagnostics,omitempty"`
	Fingerprint string           `json:"fingerprint"`
	Dialect     querysql.Dialect `json:"dialect"`
	SQL         string           `json:"sql"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <specs-dir> <Storage.method>",
		Short: "Show how a method is parsed and the SQL it runs",
		Long: `Show the parsed definition of one storage method: the parser that
handled it, its joins, conditions, ordering and limit, its parameters,
and the SQL rendered for the configured dialect.

Examples:
  dynq explain ./specs UserStorage.findByEmail
  dynq explain ./specs UserStorage.findActive --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runExplain(opts *RootOptions, specsDir, method string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cat, cliErr := loadCatalog(specsDir, formatter)
	if cliErr != nil {
		_ = formatter.Error(cliErr.Code, cliErr.Message, cliErr.Details)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", cliErr.Code, cliErr.Message))
	}

	storage, _, _ := strings.Cut(method, ".")
	if _, ok := cat.Storage(storage); !ok {
		_ = formatter.Error(ErrCodeUnknownMethod, fmt.Sprintf("unknown storage %q", storage), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown storage %q", storage))
	}

	dialect, err := querysql.DialectFor(opts.Config().Database.Driver)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid driver", err)
	}

	chain := parser.NewChain(parser.Options{Fallback: opts.Config().Parser.FallbackPolicy(), Logger: opts.Logger()})
	repo := repository.New(cat, chain, executor.New(nil, dialect), opts.Logger())
	if err := repo.Register(storage); err != nil {
		_ = formatter.QueryError(err)
		return WrapExitError(ExitFailure, "registration failed", err)
	}

	entry, ok := repo.Lookup(method)
	if !ok {
		_ = formatter.Error(ErrCodeUnknownMethod, fmt.Sprintf("method not declared: %q", method), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("method not declared: %q", method))
	}

	strategy, _ := chain.Select(entry.Method)
	result, err := explainEntry(entry, strategy.Name(), querysql.NewCompiler(dialect))
	if err != nil {
		_ = formatter.QueryError(err)
		return WrapExitError(ExitFailure, "render failed", err)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputExplainText(formatter, result)
	return nil
}

// explainEntry builds the explanation of a registered method.
func explainEntry(e *repository.Entry, strategy string, c *querysql.Compiler) (*ExplainResult, error) {
	def := e.Definition
	sql, err := renderSQL(c, e)
	if err != nil {
		return nil, err
	}

	result := &ExplainResult{
		Method:      e.Name(),
		Strategy:    strategy,
		Query:       e.Method.Query,
		Action:      def.Action(),
		Returns:     string(e.Method.Returns),
		Distinct:    def.Distinct(),
		Fingerprint: e.Fingerprint,
		Dialect:     c.Dialect(),
		SQL:         sql,
		Warnings:    e.Portability.Warnings,
	}
	if n, ok := def.Limit(); ok {
		result.Limit = &n
	}
	for _, j := range def.Joins() {
		result.Joins = append(result.Joins, fmt.Sprintf("%s JOIN %s %s", j.Kind, j.Path, j.Alias))
	}
	for i, cond := range def.Conditions() {
		result.Conditions = append(result.Conditions, describeCondition(i, cond))
	}
	for _, o := range def.Orders() {
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		result.Orders = append(result.Orders, o.Property+" "+dir)
	}
	for _, p := range e.Method.Params {
		result.Params = append(result.Params, describeParam(p))
	}
	for _, d := range def.Diagnostics() {
		result.Diagnostics = append(result.Diagnostics, d.String())
	}
	return result, nil
}

// describeCondition renders a condition as "[AND ]attribute OPERATION value".
func describeCondition(i int, c querydef.Condition) string {
	var b strings.Builder
	if i > 0 {
		b.WriteString(string(c.Connector))
		b.WriteByte(' ')
	}
	b.WriteString(c.Attribute.Name)
	b.WriteByte(' ')
	b.WriteString(string(c.Operation))
	if c.Operation.ExpectsValue() {
		b.WriteByte(' ')
		b.WriteString(c.Value.String())
	}
	if c.IgnoreCase {
		b.WriteString(" (ignore case)")
	}
	if c.Wildcard != querydef.WildcardNone {
		fmt.Fprintf(&b, " (%s)", c.Wildcard)
	}
	return b.String()
}

func describeParam(p schema.Param) string {
	if p.Bind != "" {
		return fmt.Sprintf("%s %s (bound as :%s)", p.Name, p.Type, p.Bind)
	}
	return p.Name + " " + p.Type
}

// outputExplainText prints the explanation in human-readable form.
func outputExplainText(formatter *OutputFormatter, r *ExplainResult) {
	w := formatter.Writer

	fmt.Fprintf(w, "Method: %s\n", r.Method)
	fmt.Fprintf(w, "Parser: %s\n", r.Strategy)
	if r.Query != "" {
		fmt.Fprintf(w, "Query: %s\n", r.Query)
	}
	fmt.Fprintf(w, "Action: %s → %s\n", r.Action, r.Returns)
	if r.Distinct {
		fmt.Fprintln(w, "Distinct: yes")
	}
	if r.Limit != nil {
		fmt.Fprintf(w, "Limit: %d\n", *r.Limit)
	}

	printSection(w, "Joins", r.Joins)
	printSection(w, "Conditions", r.Conditions)
	printSection(w, "Order", r.Orders)
	printSection(w, "Params", r.Params)
	printSection(w, "Diagnostics", r.Diagnostics)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "SQL (%s):\n  %s\n", r.Dialect, r.SQL)
	printSection(w, "Portability warnings", r.Warnings)
	fmt.Fprintf(w, "\nFingerprint: %s\n", r.Fingerprint)
}

func printSection(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, line := range lines {
		fmt.Fprintf(w, "  %s\n", line)
	}
}
