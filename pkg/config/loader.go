package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nimburion/keyset/pkg/cursor/codec"
	"github.com/nimburion/keyset/pkg/observability/logger"
	"github.com/nimburion/keyset/pkg/repository"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
	flags      *pflag.FlagSet
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"tiebreaker":      "pagination.tiebreaker",
	"format":          "pagination.format",
	"max-token-bytes": "pagination.max_token_bytes",
	"dialect":         "pagination.dialect",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "KEYSET")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithFlags binds command line flags. Flags that were set override every
// other source.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	l.flags = flags
	return l
}

// Load loads configuration with precedence: flags > ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()

	l.setDefaults(v, DefaultConfig())

	// Read config file if provided
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	l.bindEnvVars(v)
	if err := l.bindFlags(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("pagination.tiebreaker", l.prefixedEnv("PAGINATION_TIEBREAKER"))
	v.BindEnv("pagination.format", l.prefixedEnv("PAGINATION_FORMAT"))
	v.BindEnv("pagination.default_limit", l.prefixedEnv("PAGINATION_DEFAULT_LIMIT"))
	v.BindEnv("pagination.max_limit", l.prefixedEnv("PAGINATION_MAX_LIMIT"))
	v.BindEnv("pagination.max_token_bytes", l.prefixedEnv("PAGINATION_MAX_TOKEN_BYTES"))
	v.BindEnv("pagination.dialect", l.prefixedEnv("PAGINATION_DIALECT"))

	v.BindEnv("log.level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("log.format", l.prefixedEnv("LOG_FORMAT"))
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := l.flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = "KEYSET"
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("pagination.tiebreaker", cfg.Pagination.Tiebreaker)
	v.SetDefault("pagination.format", cfg.Pagination.Format)
	v.SetDefault("pagination.default_limit", cfg.Pagination.DefaultLimit)
	v.SetDefault("pagination.max_limit", cfg.Pagination.MaxLimit)
	v.SetDefault("pagination.max_token_bytes", cfg.Pagination.MaxTokenBytes)
	v.SetDefault("pagination.dialect", cfg.Pagination.Dialect)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// Validate validates the configuration and returns detailed errors
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.Pagination.Tiebreaker = strings.TrimSpace(cfg.Pagination.Tiebreaker)
	if cfg.Pagination.Tiebreaker == "" {
		errs = append(errs, errors.New("pagination.tiebreaker is required"))
	}

	switch format, err := codec.ParseFormat(cfg.Pagination.Format); {
	case err != nil:
		errs = append(errs, fmt.Errorf("invalid pagination.format: %s (must be one of: compact, text)", cfg.Pagination.Format))
	case format == codec.FormatAuto:
		errs = append(errs, errors.New("pagination.format must name a concrete format (compact or text)"))
	}

	if cfg.Pagination.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("pagination.default_limit must be positive, got %d", cfg.Pagination.DefaultLimit))
	}
	if cfg.Pagination.MaxLimit <= 0 {
		errs = append(errs, fmt.Errorf("pagination.max_limit must be positive, got %d", cfg.Pagination.MaxLimit))
	}
	if cfg.Pagination.DefaultLimit > cfg.Pagination.MaxLimit {
		errs = append(errs, fmt.Errorf("pagination.default_limit (%d) exceeds pagination.max_limit (%d)",
			cfg.Pagination.DefaultLimit, cfg.Pagination.MaxLimit))
	}
	if cfg.Pagination.MaxTokenBytes <= 0 {
		errs = append(errs, fmt.Errorf("pagination.max_token_bytes must be positive, got %d", cfg.Pagination.MaxTokenBytes))
	}
	if _, err := repository.ParseDialect(cfg.Pagination.Dialect); err != nil {
		errs = append(errs, fmt.Errorf("invalid pagination.dialect: %w", err))
	}

	if _, err := logger.ParseLogLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log.level: %w", err))
	}
	if _, err := logger.ParseLogFormat(cfg.Log.Format); err != nil {
		errs = append(errs, fmt.Errorf("invalid log.format: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
