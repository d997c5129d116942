// Command reconcile replays a captured model stream through the reconciler
// and publishes the evolving items to the configured sinks.
//
// Usage:
//
//	reconcile [flags] [input]
//
// The input defaults to stdin. Formats:
//
//	text       the raw streamed JSON document, e.g. concatenated tool arguments
//	anthropic  Messages API server-sent events (.sse)
//	gemini     one GenerateContentResponse JSON object per line (.ndjson)
//
// Configuration is read from .reconcile.yaml (or -config), .env and
// RECONCILE_* environment variables; flags override all of them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/fwojciec/reconcile"
	bt "github.com/fwojciec/reconcile/bubbletea"
	"github.com/fwojciec/reconcile/fs"
	"github.com/fwojciec/reconcile/goldmark"
	reconcilejson "github.com/fwojciec/reconcile/json"
	"github.com/fwojciec/reconcile/jsonschema"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; variables already set are not overridden.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.LookupEnv); err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, lookup func(string) (string, bool)) error {
	cfg, rest, err := parseConfig(args, lookup, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(rest) > 1 {
		return fmt.Errorf("expected at most one input, got %d", len(rest))
	}

	logger, closeLog, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	input, path, err := openInput(rest, stdin)
	if err != nil {
		return err
	}
	defer input.Close()
	format := detectFormat(cfg.Format, path)

	schema := cfg.Schema.schema()
	opts := []reconcile.Option{
		reconcile.WithLogger(logger),
		reconcile.WithSchema(schema),
	}
	switch {
	case cfg.SchemaFile != "":
		v, err := jsonschema.NewFromFile(cfg.SchemaFile)
		if err != nil {
			return err
		}
		opts = append(opts, reconcile.WithValidator(v))
	case cfg.Validate:
		v, err := jsonschema.New(schema)
		if err != nil {
			return err
		}
		opts = append(opts, reconcile.WithValidator(v))
	}

	var initial reconcile.Fragment
	if cfg.Seed.Dir != "" {
		d, err := fs.Seed(cfg.Seed.Dir, cfg.Seed.Glob, schema)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		initial = d
	}

	sinks, closeSinks, err := newSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	work := func(ctx context.Context, extra reconcile.Sink) ([]*reconcile.Session, error) {
		all := sinks
		if extra != nil {
			all = append(append(reconcile.MultiSink{}, sinks...), extra)
		}
		c := reconcile.NewController(reconcilejson.Parser{}, append(opts, reconcile.WithSink(all))...)
		lc := seeded{Lifecycle: c, initial: initial}
		r := &pacedReader{ctx: ctx, r: input, chunk: cfg.Chunk, delay: cfg.Delay}

		sessions, err := replay(ctx, lc, format, r, cfg, logger)
		if cfg.Output.Complete && cfg.Output.Dir != "" {
			if cerr := complete(ctx, all, sessions); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
		return sessions, err
	}

	if cfg.TUI {
		return runTUI(ctx, work)
	}
	sessions, err := work(ctx, nil)
	printSummary(stdout, sessions)
	return err
}

// runTUI runs work under the terminal UI and returns its error once the UI
// exits.
func runTUI(ctx context.Context, work func(context.Context, reconcile.Sink) ([]*reconcile.Session, error)) error {
	done := make(chan error, 1)
	m := bt.New(func(ctx context.Context, sink reconcile.Sink) error {
		_, err := work(ctx, sink)
		done <- err
		return err
	}, reconcile.DefaultTheme())
	if err := bt.Run(ctx, m); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	select {
	case err := <-done:
		return err
	default:
		return ctx.Err()
	}
}

func openInput(rest []string, stdin io.Reader) (io.ReadCloser, string, error) {
	if len(rest) == 0 || rest[0] == "-" {
		return io.NopCloser(stdin), "", nil
	}
	f, err := os.Open(rest[0])
	if err != nil {
		return nil, "", fmt.Errorf("open input: %w", err)
	}
	return f, rest[0], nil
}

// newLogger builds the slog logger selected by the config. With the TUI and
// no log file, logs are discarded so they cannot tear the screen.
func newLogger(cfg Config, stderr io.Writer) (*slog.Logger, func(), error) {
	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	w := stderr
	closer := func() {}
	switch {
	case cfg.Log.File != "":
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = func() { _ = f.Close() }
	case cfg.TUI:
		return slog.New(slog.DiscardHandler), closer, nil
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts)), closer, nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), closer, nil
}

// newSinks builds the file-backed sinks selected by the config.
func newSinks(cfg Config, logger *slog.Logger) (reconcile.MultiSink, func(), error) {
	var sinks reconcile.MultiSink
	closer := func() {}
	if cfg.Snapshots != "" {
		sinks = append(sinks, reconcilejson.NewFileSink(cfg.Snapshots))
	}
	if cfg.Output.Dir != "" {
		opts := []fs.Option{fs.WithLogger(logger), fs.WithInclude(cfg.Output.Include...)}
		if cfg.Output.FinalOnly {
			opts = append(opts, fs.WithFinalOnly())
		}
		out, err := fs.NewSink(cfg.Output.Dir, opts...)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, out)
		closer = func() { _ = out.Close() }
	}
	return sinks, closer, nil
}

// printSummary renders the last state of every session.
func printSummary(w io.Writer, sessions []*reconcile.Session) {
	theme := reconcile.DefaultTheme()
	for i, s := range sessions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		phase := reconcile.PhaseProgress
		if s.State() == reconcile.SessionFinished {
			phase = reconcile.PhaseLoading
		}
		out := goldmark.RenderProgress(s.Progress(phase), 80, theme)
		fmt.Fprintf(w, "session %s (%s)\n%s\n", s.ID, s.State(), strings.TrimRight(out, "\n"))
	}
}
