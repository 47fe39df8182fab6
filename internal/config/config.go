package config

// Config represents the complete dynq configuration.
// It can be loaded from .dynq/config.yml with environment variable overrides.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Parser   ParserConfig   `yaml:"parser" mapstructure:"parser"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig selects the backend queries run against.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"`                 // "sqlite3" or "pgx"
	DSN          string `yaml:"dsn" mapstructure:"dsn"`                       // driver data source name
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns"` // pool bound, ignored for sqlite3
}

// ParserConfig controls query parsing.
type ParserConfig struct {
	Fallback string `yaml:"fallback" mapstructure:"fallback"` // "warn" or "strict"
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// Default returns a configuration with sensible defaults: an in-memory
// SQLite database and lenient parsing.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       "sqlite3",
			DSN:          ":memory:",
			MaxOpenConns: 10,
		},
		Parser: ParserConfig{
			Fallback: "warn",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
