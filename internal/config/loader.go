package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
	file    string
}

// NewLoader creates a loader that searches rootDir/.dynq for config.yml.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// NewFileLoader creates a loader for an explicit config file, which must
// exist.
func NewFileLoader(file string) Loader {
	return &loader{file: file}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (DYNQ_*)
// 2. Config file (.dynq/config.yml or the explicit file)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, ".dynq"))
	}

	// Replace . with _ in env var names (e.g., DYNQ_DATABASE_DSN)
	v.SetEnvPrefix("DYNQ")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("database.driver")
	v.BindEnv("database.dsn")
	v.BindEnv("database.max_open_conns")
	v.BindEnv("parser.fallback")
	v.BindEnv("log.level")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable when searching
		var notFound viper.ConfigFileNotFoundError
		if l.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("database.driver", defaults.Database.Driver)
	v.SetDefault("database.dsn", defaults.Database.DSN)
	v.SetDefault("database.max_open_conns", defaults.Database.MaxOpenConns)
	v.SetDefault("parser.fallback", defaults.Parser.Fallback)
	v.SetDefault("log.level", defaults.Log.Level)
}

// Load loads configuration from file, or from the working directory's
// .dynq/config.yml when file is empty.
func Load(file string) (*Config, error) {
	if file != "" {
		return NewFileLoader(file).Load()
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}
