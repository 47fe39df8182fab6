package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dynquery/internal/store"
)

// MigrateResult lists the tables ensured by the migrate command.
type MigrateResult struct {
	Driver string   `json:"driver"`
	Tables []string `json:"tables"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <specs-dir>",
		Short: "Create the tables of every declared entity",
		Long: `Create one table per declared entity in the configured database.

Existing tables are left unchanged, so migrate can run repeatedly.
The database is selected by database.driver and database.dsn in
.dynq/config.yml, or DYNQ_DATABASE_DRIVER and DYNQ_DATABASE_DSN.

Example:
  DYNQ_DATABASE_DSN=./app.db dynq migrate ./specs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runMigrate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts, cmd)
	logger := opts.Logger()
	cfg := opts.Config()

	cat, cliErr := loadCatalog(specsDir, formatter)
	if cliErr != nil {
		_ = formatter.Error(cliErr.Code, cliErr.Message, cliErr.Details)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", cliErr.Code, cliErr.Message))
	}

	logger.Info("opening database", "driver", cfg.Database.Driver)
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	if err := st.Migrate(ctx, cat); err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitFailure, "migration failed", err)
	}

	result := MigrateResult{Driver: st.Driver(), Tables: []string{}}
	for _, e := range cat.Entities {
		result.Tables = append(result.Tables, e.Table)
	}
	slices.Sort(result.Tables)
	logger.Info("tables ready", "count", len(result.Tables))

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Migrated %d table(s) on %s\n", len(result.Tables), result.Driver)
	for _, t := range result.Tables {
		fmt.Fprintf(formatter.Writer, "  %s\n", t)
	}
	return nil
}
