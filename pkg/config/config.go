package config

import (
	"github.com/nimburion/keyset/pkg/cursor/codec"
	"github.com/nimburion/keyset/pkg/repository"
)

// Config is the root configuration structure
type Config struct {
	Pagination PaginationConfig `mapstructure:"pagination" yaml:"pagination"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// PaginationConfig configures cursor handling
type PaginationConfig struct {
	// Tiebreaker is the unique field appended to orderings to make them total.
	Tiebreaker string `mapstructure:"tiebreaker" yaml:"tiebreaker"`
	// Format is the encoding of issued tokens: compact or text.
	Format        string `mapstructure:"format" yaml:"format"`
	DefaultLimit  int    `mapstructure:"default_limit" yaml:"default_limit"`
	MaxLimit      int    `mapstructure:"max_limit" yaml:"max_limit"`
	MaxTokenBytes int    `mapstructure:"max_token_bytes" yaml:"max_token_bytes"`
	// Dialect selects SQL placeholder and quoting style: postgres or mysql.
	Dialect string `mapstructure:"dialect" yaml:"dialect"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Pagination: PaginationConfig{
			Tiebreaker:    "id",
			Format:        string(codec.FormatCompact),
			DefaultLimit:  repository.DefaultLimit,
			MaxLimit:      repository.MaxLimit,
			MaxTokenBytes: codec.DefaultMaxTokenBytes,
			Dialect:       "postgres",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// CodecOptions returns the codec options implied by the configuration.
// Format must already be validated.
func (p PaginationConfig) CodecOptions() []codec.Option {
	format, _ := codec.ParseFormat(p.Format)
	return []codec.Option{
		codec.WithFormat(format),
		codec.WithMaxTokenBytes(p.MaxTokenBytes),
	}
}

// RepositoryOptions returns the keyset repository options implied by the
// configuration. Dialect must already be validated.
func (p PaginationConfig) RepositoryOptions() []repository.KeysetOption {
	format, _ := codec.ParseFormat(p.Format)
	dialect, _ := repository.ParseDialect(p.Dialect)
	return []repository.KeysetOption{
		repository.WithDialect(dialect),
		repository.WithTokenFormat(format),
		repository.WithLimits(p.DefaultLimit, p.MaxLimit),
	}
}
