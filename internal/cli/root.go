package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dynquery/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string // explicit config file; empty searches .dynq/config.yml

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Config returns the loaded configuration, or the defaults when the
// command runs without the root command's pre-run hook.
func (o *RootOptions) Config() *config.Config {
	if o.cfg == nil {
		return config.Default()
	}
	return o.cfg
}

// Logger returns the command logger. Without the pre-run hook it
// discards output.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

// NewRootCommand creates the root command for the dynq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dynq",
		Short: "dynq - declarative query methods over SQL",
		Long: `Compile storage declarations into SQL queries and run them.

Storage methods are declared in CUE. A method either carries query text
(structured or native SQL) or derives its query from its name, as in
findByEmailAndStatusOrderByCreatedDesc.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return setup(opts, cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default .dynq/config.yml)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup loads the configuration and builds the stderr logger. --verbose
// forces debug level; otherwise log.level from the configuration applies.
func setup(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	opts.cfg = cfg
	opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newFormatter creates the output formatter for cmd.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
