package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/nimburion/keyset/pkg/cursor/codec"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pagination.Tiebreaker != "id" {
		t.Errorf("expected tiebreaker id, got %s", cfg.Pagination.Tiebreaker)
	}
	if cfg.Pagination.Format != "compact" {
		t.Errorf("expected format compact, got %s", cfg.Pagination.Format)
	}
	if cfg.Pagination.DefaultLimit != 20 || cfg.Pagination.MaxLimit != 1000 {
		t.Errorf("unexpected limits %d/%d", cfg.Pagination.DefaultLimit, cfg.Pagination.MaxLimit)
	}
	if cfg.Pagination.MaxTokenBytes != codec.DefaultMaxTokenBytes {
		t.Errorf("expected max token bytes %d, got %d", codec.DefaultMaxTokenBytes, cfg.Pagination.MaxTokenBytes)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
}

func TestViperLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewViperLoader("", "KEYSET").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keyset.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestViperLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
pagination:
  tiebreaker: uuid
  format: text
  default_limit: 10
  dialect: mysql
log:
  level: debug
`)

	cfg, err := NewViperLoader(path, "KEYSET").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pagination.Tiebreaker != "uuid" || cfg.Pagination.Format != "text" || cfg.Pagination.DefaultLimit != 10 {
		t.Errorf("file values not applied: %+v", cfg.Pagination)
	}
	if cfg.Pagination.MaxLimit != 1000 {
		t.Errorf("expected default max limit, got %d", cfg.Pagination.MaxLimit)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
}

func TestViperLoader_MissingFile(t *testing.T) {
	_, err := NewViperLoader(filepath.Join(t.TempDir(), "missing.yaml"), "").Load()
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestViperLoader_Precedence(t *testing.T) {
	path := writeConfig(t, "pagination:\n  tiebreaker: from_file\n  format: text\n")
	t.Setenv("KEYSET_PAGINATION_TIEBREAKER", "from_env")
	t.Setenv("KEYSET_PAGINATION_FORMAT", "compact")
	t.Setenv("KEYSET_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("tiebreaker", "", "")
	flags.String("format", "", "")
	if err := flags.Parse([]string{"--format=text"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := NewViperLoader(path, "keyset").WithFlags(flags).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pagination.Tiebreaker != "from_env" {
		t.Errorf("env should override file, got %s", cfg.Pagination.Tiebreaker)
	}
	if cfg.Pagination.Format != "text" {
		t.Errorf("flag should override env, got %s", cfg.Pagination.Format)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected env log level, got %s", cfg.Log.Level)
	}
}

func TestViperLoader_DefaultPrefix(t *testing.T) {
	t.Setenv("KEYSET_PAGINATION_MAX_LIMIT", "50")

	cfg, err := NewViperLoader("", "").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pagination.MaxLimit != 50 {
		t.Errorf("expected max limit 50, got %d", cfg.Pagination.MaxLimit)
	}
}

func TestViperLoader_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:   "blank tiebreaker",
			mutate: func(c *Config) { c.Pagination.Tiebreaker = "  " },
			want:   []string{"pagination.tiebreaker is required"},
		},
		{
			name:   "unknown format",
			mutate: func(c *Config) { c.Pagination.Format = "xml" },
			want:   []string{"invalid pagination.format"},
		},
		{
			name:   "auto format",
			mutate: func(c *Config) { c.Pagination.Format = "auto" },
			want:   []string{"concrete format"},
		},
		{
			name: "limits",
			mutate: func(c *Config) {
				c.Pagination.DefaultLimit = 50
				c.Pagination.MaxLimit = 10
				c.Pagination.MaxTokenBytes = 0
			},
			want: []string{"exceeds pagination.max_limit", "max_token_bytes must be positive"},
		},
		{
			name: "multiple errors",
			mutate: func(c *Config) {
				c.Pagination.Dialect = "oracle"
				c.Log.Level = "loud"
				c.Log.Format = "xml"
			},
			want: []string{"invalid pagination.dialect", "invalid log.level", "invalid log.format"},
		},
	}

	loader := NewViperLoader("", "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := loader.Validate(cfg)
			if len(tt.want) == 0 {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q does not mention %q", err, w)
				}
			}
		})
	}
}

func TestPaginationConfig_Options(t *testing.T) {
	p := DefaultConfig().Pagination
	p.Format = "text"

	c := codec.New(p.CodecOptions()...)
	if c.Format() != codec.FormatText {
		t.Errorf("expected text codec, got %s", c.Format())
	}
	if got := len(p.RepositoryOptions()); got != 3 {
		t.Errorf("expected 3 repository options, got %d", got)
	}
}
