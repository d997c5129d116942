package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/reconcile"
	"github.com/fwojciec/reconcile/anthropic"
	"github.com/fwojciec/reconcile/gemini"
)

const (
	formatText      = "text"
	formatAnthropic = "anthropic"
	formatGemini    = "gemini"
)

// detectFormat picks the input format from the file extension when none was
// configured.
func detectFormat(format, path string) string {
	if format != "" {
		return format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sse", ".events":
		return formatAnthropic
	case ".ndjson", ".jsonl":
		return formatGemini
	default:
		return formatText
	}
}

// seeded starts every session with a fixed initial fragment.
type seeded struct {
	reconcile.Lifecycle
	initial reconcile.Fragment
}

func (s seeded) Start(ctx context.Context, initial reconcile.Fragment) *reconcile.Session {
	if initial == nil {
		initial = s.initial
	}
	return s.Lifecycle.Start(ctx, initial)
}

// pacedReader limits every read to chunk bytes and waits delay before each
// one, so that a captured stream replays at a readable pace.
type pacedReader struct {
	ctx   context.Context
	r     io.Reader
	chunk int
	delay time.Duration
}

func (p *pacedReader) Read(b []byte) (int, error) {
	if p.delay > 0 {
		t := time.NewTimer(p.delay)
		select {
		case <-p.ctx.Done():
			t.Stop()
			return 0, p.ctx.Err()
		case <-t.C:
		}
	}
	if len(b) > p.chunk {
		b = b[:p.chunk]
	}
	return p.r.Read(b)
}

// replay feeds r through lc in the given format and returns the sessions it
// drove, including unfinished ones. Sessions whose finish was rejected are
// reported in the joined error.
func replay(ctx context.Context, lc reconcile.Lifecycle, format string, r io.Reader, cfg Config, logger *slog.Logger) ([]*reconcile.Session, error) {
	switch format {
	case formatText:
		return replayText(ctx, lc, r, cfg.Chunk)

	case formatAnthropic:
		opts := []anthropic.Option{anthropic.WithLogger(logger)}
		if cfg.Tool != "" {
			opts = append(opts, anthropic.WithToolName(cfg.Tool))
		}
		results, err := anthropic.NewFeed(lc, opts...).Run(ctx, r)
		sessions := make([]*reconcile.Session, 0, len(results))
		var errs []error
		for _, res := range results {
			sessions = append(sessions, res.Session)
			if res.Err != nil {
				errs = append(errs, fmt.Errorf("block %d (%s): %w", res.Index, res.ToolID, res.Err))
			}
		}
		if err != nil {
			errs = append(errs, err)
		}
		return sessions, errors.Join(errs...)

	case formatGemini:
		opts := []gemini.Option{gemini.WithLogger(logger), gemini.WithTextParts()}
		if cfg.Tool != "" {
			opts = append(opts, gemini.WithFunctionName(cfg.Tool))
		}
		s, err := gemini.NewFeed(lc, opts...).Run(ctx, gemini.DecodeNDJSON(r))
		return []*reconcile.Session{s}, err

	default:
		return nil, fmt.Errorf("unknown format %q: %w", format, reconcile.ErrValidation)
	}
}

// replayText treats the input as the raw streamed document of one session,
// applied in reads of at most chunk bytes.
func replayText(ctx context.Context, lc reconcile.Lifecycle, r io.Reader, chunk int) ([]*reconcile.Session, error) {
	s := lc.Start(ctx, nil)
	sessions := []*reconcile.Session{s}
	buf := make([]byte, chunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			lc.Delta(ctx, s, reconcile.Text{Chunk: string(buf[:n])})
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sessions, fmt.Errorf("read input: %w", err)
		}
	}
	return sessions, lc.Finish(ctx, s, nil)
}

// complete marks every item of finished sessions completed and publishes the
// result.
func complete(ctx context.Context, sink reconcile.Sink, sessions []*reconcile.Session) error {
	var errs []error
	for _, s := range sessions {
		if s.State() != reconcile.SessionFinished {
			continue
		}
		for _, it := range s.Items() {
			if err := s.MarkCompleted(it.Index, "", 0); err != nil {
				errs = append(errs, err)
			}
		}
		if sink != nil {
			if err := sink.Upsert(ctx, s.ID, s.Progress(reconcile.PhaseLoading)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
