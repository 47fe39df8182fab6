package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/dynquery/internal/compiler"
	"github.com/roach88/dynquery/internal/config"
	"github.com/roach88/dynquery/internal/executor"
	"github.com/roach88/dynquery/internal/parser"
	"github.com/roach88/dynquery/internal/repository"
	"github.com/roach88/dynquery/internal/schema"
	"github.com/roach88/dynquery/internal/store"
)

// Error codes reported by CLI commands. Load errors reuse the compiler's
// E001-E007 range; query failures report their QueryError code.
const (
	ErrCodeGeneric       = compiler.ErrCodeGeneric
	ErrCodeWriteFailed   = compiler.ErrCodeWriteFailed
	ErrCodeUnknownMethod = "E008" // no registered method by that name
	ErrCodeDatabase      = "E009" // store could not be opened or migrated
	ErrCodeBadArgument   = "E010" // argument could not be decoded
)

// loadCatalog compiles and validates the declarations in dir. The
// returned error carries a CLI error code.
func loadCatalog(dir string, formatter *OutputFormatter) (*schema.Catalog, *CLIError) {
	loaded, errs := compiler.LoadDir(dir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, loadCLIError(errs[0])
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, dir)

	if verrs := compiler.Validate(loaded.Catalog); len(verrs) > 0 {
		return nil, &CLIError{Code: verrs[0].Code, Message: verrs[0].Error(), Details: verrs}
	}
	return loaded.Catalog, nil
}

// loadCLIError converts a compiler load error into a CLI error.
func loadCLIError(err error) *CLIError {
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return &CLIError{Code: loadErr.Code, Message: loadErr.Message}
	}
	return &CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

// session is a registered repository over an open store.
type session struct {
	catalog *schema.Catalog
	store   *store.Store
	repo    *repository.Repository
}

// openSession opens the configured database, creates the catalog's
// tables, and registers every storage.
func openSession(ctx context.Context, cfg *config.Config, cat *schema.Catalog, logger *slog.Logger) (*session, error) {
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	st.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	if err := st.Migrate(ctx, cat); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create tables", err)
	}
	logger.Debug("database ready", "driver", st.Driver(), "dialect", st.Dialect())

	chain := parser.NewChain(parser.Options{Fallback: cfg.Parser.FallbackPolicy(), Logger: logger})
	repo := repository.New(cat, chain, executor.New(st, st.Dialect()), logger)
	if err := repo.RegisterAll(); err != nil {
		st.Close()
		return nil, err
	}
	return &session{catalog: cat, store: st, repo: repo}, nil
}

// Close closes the session's database.
func (s *session) Close() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// outputSessionError reports an openSession failure. Database failures
// are command errors; registration failures carry their QueryError code.
func outputSessionError(formatter *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return exitErr
	}
	_ = formatter.QueryError(err)
	return WrapExitError(ExitFailure, "registration failed", err)
}
