package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/reconcile"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = ".reconcile.yaml"

// Config is the resolved CLI configuration. Values are layered: built-in
// defaults, then the YAML file, then RECONCILE_* environment variables, then
// flags.
type Config struct {
	ConfigPath string `yaml:"-"`

	// Format is the input format: text, anthropic or gemini. Empty means
	// detect from the input file extension.
	Format string `yaml:"format"`
	// Tool restricts feeds to one tool or function name.
	Tool string `yaml:"tool"`
	// Chunk is the largest read from the input, in bytes. Together with
	// Delay it paces the replay like a live stream.
	Chunk int           `yaml:"chunk"`
	Delay time.Duration `yaml:"delay"`

	Schema     SchemaConfig `yaml:"schema"`
	Validate   bool         `yaml:"validate"`
	SchemaFile string       `yaml:"schema_file"`

	Snapshots string       `yaml:"snapshots"`
	Output    OutputConfig `yaml:"output"`
	Seed      SeedConfig   `yaml:"seed"`
	TUI       bool         `yaml:"tui"`
	Log       LogConfig    `yaml:"log"`
}

// SchemaConfig names where items live in the streamed document.
type SchemaConfig struct {
	Collection     string `yaml:"collection"`
	NameKey        string `yaml:"name_key"`
	ContentKey     string `yaml:"content_key"`
	IDKey          string `yaml:"id_key"`
	Kind           string `yaml:"kind"`
	InitialVersion int    `yaml:"initial_version"`
}

// OutputConfig configures file materialization.
type OutputConfig struct {
	Dir       string   `yaml:"dir"`
	Include   []string `yaml:"include"`
	FinalOnly bool     `yaml:"final_only"`
	// Complete marks items completed once the session is finished and the
	// files are written.
	Complete bool `yaml:"complete"`
}

// SeedConfig selects existing files to start sessions from.
type SeedConfig struct {
	Dir  string `yaml:"dir"`
	Glob string `yaml:"glob"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
}

func defaultConfig() Config {
	s := reconcile.DefaultSchema()
	return Config{
		ConfigPath: defaultConfigPath,
		Chunk:      64,
		Schema: SchemaConfig{
			Collection: s.CollectionPath,
			NameKey:    s.NameKey,
			ContentKey: s.ContentKey,
			IDKey:      s.IDKey,
			Kind:       s.Kind,
		},
		Seed: SeedConfig{Glob: "**/*"},
		Log:  LogConfig{Format: "text", Level: "info"},
	}
}

// schema returns the reconcile schema described by the config.
func (c SchemaConfig) schema() reconcile.Schema {
	return reconcile.Schema{
		CollectionPath: c.Collection,
		NameKey:        c.NameKey,
		ContentKey:     c.ContentKey,
		IDKey:          c.IDKey,
		Kind:           c.Kind,
		InitialVersion: c.InitialVersion,
	}
}

// parseConfig resolves the configuration from args and the environment. It
// returns the remaining positional arguments. Flags are parsed twice: once to
// find the config file, and again over the loaded values so that explicit
// flags win.
func parseConfig(args []string, lookup func(string) (string, bool), stderr io.Writer) (Config, []string, error) {
	scratch := defaultConfig()
	first := newFlagSet(&scratch, stderr)
	if err := first.Parse(args); err != nil {
		return Config{}, nil, err
	}
	explicit := false
	first.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	cfg := defaultConfig()
	if err := loadFile(&cfg, scratch.ConfigPath, explicit); err != nil {
		return Config{}, nil, err
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, nil, err
	}
	cfg.ConfigPath = scratch.ConfigPath

	second := newFlagSet(&cfg, io.Discard)
	if err := second.Parse(args); err != nil {
		return Config{}, nil, err
	}
	if err := cfg.check(); err != nil {
		return Config{}, nil, err
	}
	return cfg, second.Args(), nil
}

func newFlagSet(cfg *Config, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Path to YAML config file")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "Input format: text, anthropic, gemini (detected from extension if omitted)")
	fs.StringVar(&cfg.Tool, "tool", cfg.Tool, "Only feed calls of this tool or function name")
	fs.IntVar(&cfg.Chunk, "chunk", cfg.Chunk, "Largest read from the input in bytes")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Pause between reads")
	fs.StringVar(&cfg.Schema.Collection, "collection", cfg.Schema.Collection, "Dotted path of the item array")
	fs.StringVar(&cfg.Schema.NameKey, "name-key", cfg.Schema.NameKey, "Item name key")
	fs.StringVar(&cfg.Schema.ContentKey, "content-key", cfg.Schema.ContentKey, "Item content key")
	fs.StringVar(&cfg.Schema.IDKey, "id-key", cfg.Schema.IDKey, "Item id key (empty disables id adoption)")
	fs.StringVar(&cfg.Schema.Kind, "kind", cfg.Schema.Kind, "Kind label of progress records")
	fs.IntVar(&cfg.Schema.InitialVersion, "initial-version", cfg.Schema.InitialVersion, "Version assigned to new items (0 leaves it absent)")
	fs.BoolVar(&cfg.Validate, "validate", cfg.Validate, "Validate the final payload against a JSON Schema derived from the item schema")
	fs.StringVar(&cfg.SchemaFile, "schema-file", cfg.SchemaFile, "Validate the final payload against this JSON Schema file")
	fs.StringVar(&cfg.Snapshots, "snapshots", cfg.Snapshots, "Directory for JSON progress snapshots")
	fs.StringVar(&cfg.Output.Dir, "out", cfg.Output.Dir, "Directory to materialize items into")
	fs.Var(&listFlag{p: &cfg.Output.Include}, "include", "Comma-separated globs of item names to materialize")
	fs.BoolVar(&cfg.Output.FinalOnly, "final-only", cfg.Output.FinalOnly, "Materialize items only once the session is finished")
	fs.BoolVar(&cfg.Output.Complete, "complete", cfg.Output.Complete, "Mark materialized items completed after finish")
	fs.StringVar(&cfg.Seed.Dir, "seed", cfg.Seed.Dir, "Directory of existing files to start sessions from")
	fs.StringVar(&cfg.Seed.Glob, "seed-glob", cfg.Seed.Glob, "Glob selecting seed files")
	fs.BoolVar(&cfg.TUI, "tui", cfg.TUI, "Show a live terminal UI")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "Log format: text, json")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "Write logs to this file instead of stderr")
	return fs
}

// loadFile merges the YAML file at path into cfg. A missing default file is
// tolerated; a missing explicit one is an error.
func loadFile(cfg *Config, path string, explicit bool) error {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return nil
	default:
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg from RECONCILE_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"RECONCILE_FORMAT":      &cfg.Format,
		"RECONCILE_TOOL":        &cfg.Tool,
		"RECONCILE_KIND":        &cfg.Schema.Kind,
		"RECONCILE_COLLECTION":  &cfg.Schema.Collection,
		"RECONCILE_SCHEMA_FILE": &cfg.SchemaFile,
		"RECONCILE_SNAPSHOTS":   &cfg.Snapshots,
		"RECONCILE_OUTPUT_DIR":  &cfg.Output.Dir,
		"RECONCILE_SEED_DIR":    &cfg.Seed.Dir,
		"RECONCILE_LOG_FORMAT":  &cfg.Log.Format,
		"RECONCILE_LOG_LEVEL":   &cfg.Log.Level,
		"RECONCILE_LOG_FILE":    &cfg.Log.File,
	}
	for k, p := range str {
		if v, ok := lookup(k); ok {
			*p = v
		}
	}
	if v, ok := lookup("RECONCILE_INCLUDE"); ok {
		cfg.Output.Include = splitList(v)
	}
	bools := map[string]*bool{
		"RECONCILE_TUI":      &cfg.TUI,
		"RECONCILE_VALIDATE": &cfg.Validate,
	}
	for k, p := range bools {
		v, ok := lookup(k)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		*p = b
	}
	if v, ok := lookup("RECONCILE_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RECONCILE_DELAY: %w", err)
		}
		cfg.Delay = d
	}
	return nil
}

func (c Config) check() error {
	switch c.Format {
	case "", formatText, formatAnthropic, formatGemini:
	default:
		return fmt.Errorf("unknown format %q: must be text, anthropic or gemini: %w", c.Format, reconcile.ErrValidation)
	}
	if c.Chunk <= 0 {
		return fmt.Errorf("chunk must be positive, got %d: %w", c.Chunk, reconcile.ErrValidation)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative: %w", reconcile.ErrValidation)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q: %w", c.Log.Format, reconcile.ErrValidation)
	}
	return c.Schema.schema().Validate()
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, reconcile.ErrValidation)
	}
	return l, nil
}

// listFlag is a comma-separated flag that replaces, rather than appends to,
// the configured list on first use.
type listFlag struct {
	p   *[]string
	set bool
}

func (f *listFlag) String() string {
	if f.p == nil {
		return ""
	}
	return strings.Join(*f.p, ",")
}

func (f *listFlag) Set(v string) error {
	if !f.set {
		*f.p = nil
		f.set = true
	}
	*f.p = append(*f.p, splitList(v)...)
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
