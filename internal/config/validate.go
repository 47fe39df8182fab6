package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/dynquery/internal/parser"
	"github.com/roach88/dynquery/internal/querysql"
)

var (
	// ErrInvalidDriver indicates an unsupported database driver
	ErrInvalidDriver = errors.New("invalid database driver")

	// ErrEmptyDSN indicates a missing data source name
	ErrEmptyDSN = errors.New("empty database dsn")

	// ErrInvalidPoolSize indicates a negative connection limit
	ErrInvalidPoolSize = errors.New("invalid max_open_conns")

	// ErrInvalidFallback indicates an unknown parser fallback policy
	ErrInvalidFallback = errors.New("invalid parser fallback")

	// ErrInvalidLogLevel indicates an unknown log level
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if _, err := querysql.DialectFor(cfg.Database.Driver); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q (must be sqlite3 or pgx)", ErrInvalidDriver, cfg.Database.Driver))
	}
	if cfg.Database.DSN == "" {
		errs = append(errs, ErrEmptyDSN)
	}
	if cfg.Database.MaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPoolSize, cfg.Database.MaxOpenConns))
	}
	if _, err := parser.ParseFallbackPolicy(cfg.Parser.Fallback); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidFallback, cfg.Parser.Fallback))
	}
	if _, err := cfg.Log.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Log.Level))
	}

	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Level))
	return level, err
}

// FallbackPolicy returns the parsed fallback policy. Call after Validate.
func (c ParserConfig) FallbackPolicy() parser.FallbackPolicy {
	p, _ := parser.ParseFallbackPolicy(c.Fallback)
	return p
}
