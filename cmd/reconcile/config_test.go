package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reconcile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseConfig_Defaults(t *testing.T) {
	t.Parallel()
	cfg, rest, err := parseConfig([]string{"in.json"}, env(nil), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"in.json"}, rest)
	assert.Equal(t, reconcile.DefaultSchema(), cfg.Schema.schema())
	assert.Equal(t, 64, cfg.Chunk)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "**/*", cfg.Seed.Glob)
	assert.False(t, cfg.TUI)
}

func TestParseConfig_Layers(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
format: anthropic
chunk: 16
delay: 5ms
schema:
  collection: data.metrics
  name_key: title
  content_key: body
  kind: metric
  initial_version: 1
output:
  dir: out
  include: ["metrics/**"]
log:
  level: debug
`)

	t.Run("file overrides defaults", func(t *testing.T) {
		t.Parallel()
		cfg, _, err := parseConfig([]string{"-config", path}, env(nil), io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "anthropic", cfg.Format)
		assert.Equal(t, 16, cfg.Chunk)
		assert.Equal(t, 5*time.Millisecond, cfg.Delay)
		assert.Equal(t, reconcile.Schema{
			CollectionPath: "data.metrics",
			NameKey:        "title",
			ContentKey:     "body",
			IDKey:          "id",
			Kind:           "metric",
			InitialVersion: 1,
		}, cfg.Schema.schema())
		assert.Equal(t, "out", cfg.Output.Dir)
		assert.Equal(t, []string{"metrics/**"}, cfg.Output.Include)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "text", cfg.Log.Format, "absent keys keep defaults")
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Parallel()
		cfg, _, err := parseConfig([]string{"-config", path}, env(map[string]string{
			"RECONCILE_FORMAT":    "gemini",
			"RECONCILE_INCLUDE":   "a/**, b/**",
			"RECONCILE_TUI":       "true",
			"RECONCILE_DELAY":     "1s",
			"RECONCILE_LOG_LEVEL": "warn",
		}), io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "gemini", cfg.Format)
		assert.Equal(t, []string{"a/**", "b/**"}, cfg.Output.Include)
		assert.True(t, cfg.TUI)
		assert.Equal(t, time.Second, cfg.Delay)
		assert.Equal(t, "warn", cfg.Log.Level)
	})

	t.Run("flags override env", func(t *testing.T) {
		t.Parallel()
		cfg, _, err := parseConfig([]string{
			"-config", path,
			"-format", "text",
			"-include", "x/*.yml",
			"-include", "y/*.yml",
			"-kind", "dashboard",
		}, env(map[string]string{"RECONCILE_FORMAT": "gemini", "RECONCILE_INCLUDE": "a/**"}), io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Format)
		assert.Equal(t, []string{"x/*.yml", "y/*.yml"}, cfg.Output.Include)
		assert.Equal(t, "dashboard", cfg.Schema.Kind)
		assert.Equal(t, "data.metrics", cfg.Schema.Collection)
	})
}

func TestParseConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"unknown format", []string{"-format", "xml"}, nil},
		{"zero chunk", []string{"-chunk", "0"}, nil},
		{"negative delay", []string{"-delay", "-1s"}, nil},
		{"bad log level", []string{"-log-level", "loud"}, nil},
		{"bad log format", []string{"-log-format", "xml"}, nil},
		{"same name and content key", []string{"-name-key", "x", "-content-key", "x"}, nil},
		{"bad bool env", nil, map[string]string{"RECONCILE_TUI": "maybe"}},
		{"bad duration env", nil, map[string]string{"RECONCILE_DELAY": "soon"}},
		{"unknown flag", []string{"-nope"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := parseConfig(tt.args, env(tt.env), io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestParseConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()
	_, _, err := parseConfig([]string{"-config", filepath.Join(t.TempDir(), "none.yaml")}, env(nil), io.Discard)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseConfig_MalformedFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "chunk: [not a number\n")
	_, _, err := parseConfig([]string{"-config", path}, env(nil), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "anthropic", detectFormat("", "capture.sse"))
	assert.Equal(t, "gemini", detectFormat("", "capture.NDJSON"))
	assert.Equal(t, "gemini", detectFormat("", "capture.jsonl"))
	assert.Equal(t, "text", detectFormat("", "payload.json"))
	assert.Equal(t, "text", detectFormat("", ""))
	assert.Equal(t, "gemini", detectFormat("gemini", "capture.sse"))
}
