package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/keyset/pkg/config"
	"github.com/nimburion/keyset/pkg/cursor"
	"github.com/nimburion/keyset/pkg/cursor/codec"
	"github.com/nimburion/keyset/pkg/observability/logger"
	"github.com/nimburion/keyset/pkg/observability/metrics"
	"github.com/nimburion/keyset/pkg/version"
)

// DefaultEnvPrefix prefixes environment overrides, e.g. KEYSET_PAGINATION_TIEBREAKER.
const DefaultEnvPrefix = "KEYSET"

// Output formats accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// ErrInvalidCursorFields is returned by the validate command when the cursor
// fields do not fit the ordering. The remediation has already been printed.
var ErrInvalidCursorFields = errors.New("cursor fields are not valid for the ordering")

// Options configures the root command.
type Options struct {
	Name       string
	ConfigPath string
	EnvPrefix  string
}

type runtime struct {
	cfg      *config.Config
	log      logger.Logger
	resolver *cursor.Resolver
	codec    *codec.Codec
	metrics  *metrics.Registry
}

// NewRootCommand creates the keyset CLI with infer, validate, encode, decode and version subcommands.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "keyset"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = DefaultEnvPrefix
	}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         "Inspect keyset pagination cursors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfgPath string
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	flags.String("tiebreaker", "", "unique field appended to orderings (default from config)")
	flags.String("format", "", "token format for encode: compact or text (default from config)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	printMetrics := flags.Bool("metrics", false, "print cursor metrics to stderr when the command ends")

	var rt *runtime
	load := func(cmd *cobra.Command) (*runtime, error) {
		var err error
		rt, err = loadRuntime(cfgPath, opts.EnvPrefix, cmd.Flags())
		return rt, err
	}

	rootCmd.AddCommand(
		newInferCommand(load),
		newValidateCommand(load),
		newEncodeCommand(load),
		newDecodeCommand(load),
		newVersionCommand(opts.Name),
	)

	// Runs after failed commands as well.
	for _, sub := range rootCmd.Commands() {
		run := sub.RunE
		sub.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if *printMetrics && rt != nil {
				if werr := rt.metrics.WriteText(cmd.ErrOrStderr(), metrics.Namespace); werr != nil && err == nil {
					err = werr
				}
			}
			return err
		}
	}
	return rootCmd
}

// LoadConfigAndLogger loads configuration with flag overrides and builds the logger.
func LoadConfigAndLogger(cfgPath, envPrefix string, flags *pflag.FlagSet) (*config.Config, logger.Logger, error) {
	cfg, err := config.NewViperLoader(cfgPath, envPrefix).WithFlags(flags).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(cfg.Log.Level),
		Format: logger.LogFormat(cfg.Log.Format),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	log.Debug("effective configuration", "pagination", fmt.Sprintf("%+v", cfg.Pagination))
	return cfg, log, nil
}

func loadRuntime(cfgPath, envPrefix string, flags *pflag.FlagSet) (*runtime, error) {
	cfg, log, err := LoadConfigAndLogger(cfgPath, envPrefix, flags)
	if err != nil {
		return nil, err
	}
	validator, err := cursor.NewValidator(cursor.Field(cfg.Pagination.Tiebreaker))
	if err != nil {
		return nil, err
	}
	reg := metrics.NewRegistry()
	resolver, err := cursor.NewResolver(validator, cursor.WithLogger(log), cursor.WithObserver(reg.Cursor()))
	if err != nil {
		return nil, err
	}
	codecOpts := append(cfg.Pagination.CodecOptions(), codec.WithObserver(reg.Cursor()))
	return &runtime{
		cfg:      cfg,
		log:      log,
		resolver: resolver,
		codec:    codec.New(codecOpts...),
		metrics:  reg,
	}, nil
}

type loader func(cmd *cobra.Command) (*runtime, error)

func newInferCommand(load loader) *cobra.Command {
	var order, output string
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Print the cursor fields implied by an ordering",
		Example: `  keyset infer --order "created_at:desc"
  keyset infer --order "-score,name" --tiebreaker uuid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := load(cmd)
			if err != nil {
				return err
			}
			orderSpec, err := cursor.ParseSpec(order)
			if err != nil {
				return fmt.Errorf("invalid --order: %w", err)
			}
			spec, err := rt.resolver.Resolve(orderSpec, nil)
			if err != nil {
				return err
			}
			return writeSpec(cmd.OutOrStdout(), spec, output)
		},
	}
	cmd.Flags().StringVar(&order, "order", "", `ordering, e.g. "created_at:desc,name"`)
	cmd.Flags().StringVarP(&output, "output", "o", OutputText, "output format: text, json or yaml")
	return cmd
}

func newValidateCommand(load loader) *cobra.Command {
	var order, cursorFields string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check cursor fields against an ordering",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := load(cmd)
			if err != nil {
				return err
			}
			orderSpec, err := cursor.ParseSpec(order)
			if err != nil {
				return fmt.Errorf("invalid --order: %w", err)
			}
			cursorSpec, err := cursor.ParseSpec(cursorFields)
			if err != nil {
				return fmt.Errorf("invalid --cursor-fields: %w", err)
			}

			err = rt.resolver.Validator().Validate(orderSpec, cursorSpec)
			var diag *cursor.Diagnostic
			if errors.As(err, &diag) {
				fmt.Fprintln(cmd.ErrOrStderr(), diag.Remediation())
				return ErrInvalidCursorFields
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: [%s]\n", cursorSpec)
			return nil
		},
	}
	cmd.Flags().StringVar(&order, "order", "", "ordering of the query")
	cmd.Flags().StringVar(&cursorFields, "cursor-fields", "", "cursor fields to check")
	_ = cmd.MarkFlagRequired("cursor-fields")
	return cmd
}

func newEncodeCommand(load loader) *cobra.Command {
	var values []string
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode boundary values into a cursor token",
		Long: `Encode boundary values into a cursor token.

Values are typed from their text: integers, floats, true/false, null and
RFC 3339 timestamps are recognized, anything else is a string. Quote a value
("42") to force a string.`,
		Example: `  keyset encode --value id=42 --value created_at=2024-01-01T00:00:00Z
  keyset encode --format text --value name=alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := load(cmd)
			if err != nil {
				return err
			}
			parsed, err := ParseValues(values)
			if err != nil {
				return err
			}
			token, err := rt.codec.Encode(parsed, rt.codec.Format())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&values, "value", nil, "field=value pair, repeatable")
	return cmd
}

func newDecodeCommand(load loader) *cobra.Command {
	var output, cursorFields string
	cmd := &cobra.Command{
		Use:   "decode TOKEN",
		Short: "Decode a cursor token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := load(cmd)
			if err != nil {
				return err
			}
			spec, err := cursor.ParseSpec(cursorFields)
			if err != nil {
				return fmt.Errorf("invalid --cursor-fields: %w", err)
			}

			token := codec.Token(strings.TrimSpace(args[0]))
			var values codec.Values
			if len(spec) > 0 {
				values, err = rt.codec.DecodeFor(token, codec.FormatAuto, spec)
			} else {
				values, err = rt.codec.Decode(token, codec.FormatAuto)
			}
			if err != nil {
				return err
			}
			return writeValues(cmd.OutOrStdout(), values, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", OutputYAML, "output format: yaml or json")
	cmd.Flags().StringVar(&cursorFields, "cursor-fields", "", "expected cursor fields; unknown or missing keys are rejected")
	return cmd
}

func newVersionCommand(name string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Current(name)
			w := cmd.OutOrStdout()
			switch output {
			case OutputJSON:
				return writeJSON(w, info)
			case OutputText, "":
				fmt.Fprintf(w, "Service:    %s\n", info.Service)
				fmt.Fprintf(w, "Version:    %s\n", info.Version)
				fmt.Fprintf(w, "Commit:     %s\n", info.Commit)
				fmt.Fprintf(w, "Build Time: %s\n", info.BuildTime)
				return nil
			default:
				return fmt.Errorf("unsupported output format %q", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", OutputText, "output format: text or json")
	return cmd
}

// ParseValues parses field=value pairs into cursor values.
func ParseValues(pairs []string) (codec.Values, error) {
	values := make(codec.Values, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid value %q: expected field=value", pair)
		}
		if _, dup := values[cursor.Field(name)]; dup {
			return nil, fmt.Errorf("duplicate value for field %q", name)
		}
		values[cursor.Field(name)] = parseScalar(raw)
	}
	return values, nil
}

func parseScalar(raw string) any {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	switch raw {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return raw
}

func writeSpec(w io.Writer, spec cursor.Spec, output string) error {
	switch output {
	case OutputText, "":
		_, err := fmt.Fprintln(w, spec.String())
		return err
	case OutputJSON:
		return writeJSON(w, specDocument(spec))
	case OutputYAML:
		return writeYAML(w, specDocument(spec))
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}
}

type fieldDocument struct {
	Field     string `json:"field" yaml:"field"`
	Direction string `json:"direction" yaml:"direction"`
}

func specDocument(spec cursor.Spec) []fieldDocument {
	doc := make([]fieldDocument, len(spec))
	for i, fs := range spec {
		doc[i] = fieldDocument{Field: string(fs.Field), Direction: string(fs.Direction)}
	}
	return doc
}

func writeValues(w io.Writer, values codec.Values, output string) error {
	doc := make(map[string]any, len(values))
	for f, v := range values {
		// Times render as RFC 3339 strings in every output format.
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339Nano)
		}
		doc[string(f)] = v
	}
	switch output {
	case OutputYAML, "":
		return writeYAML(w, doc)
	case OutputJSON:
		return writeJSON(w, doc)
	case OutputText:
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s=%v\n", k, doc[k])
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	return enc.Close()
}

// Execute runs the command and exits with appropriate code.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, ErrInvalidCursorFields) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
