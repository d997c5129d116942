// Package fs materializes reconciled items as files under a root directory.
//
// Each item's name is a slash-separated path relative to the root. Names that
// are absolute or climb out of the root are rejected; writes go through an
// [os.Root] so that symlinks inside the tree cannot redirect them either.
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/reconcile"
)

// Interface compliance check.
var _ reconcile.Sink = (*Sink)(nil)

// Sink writes item contents to files. It is safe for concurrent use.
type Sink struct {
	root      *os.Root
	include   []string
	finalOnly bool
	logger    *slog.Logger

	mu sync.Mutex
	// written holds the last content written per session and path. Entries
	// live as long as the Sink.
	written map[writeKey]string
}

type writeKey struct {
	session string
	path    string
}

// Option configures a [Sink].
type Option func(*Sink)

// WithInclude restricts writes to item names matching at least one of the
// doublestar patterns, e.g. "metrics/**/*.yml".
func WithInclude(patterns ...string) Option {
	return func(s *Sink) { s.include = append(s.include, patterns...) }
}

// WithFinalOnly writes files only for loading snapshots, i.e. once the
// session has been finished with an authoritative payload.
func WithFinalOnly() Option {
	return func(s *Sink) { s.finalOnly = true }
}

// WithLogger sets the structured logger. Default discards all records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// NewSink opens dir, creating it if needed, and returns a Sink rooted there.
// The caller must Close it.
func NewSink(dir string, opts ...Option) (*Sink, error) {
	s := &Sink{
		logger:  slog.New(slog.DiscardHandler),
		written: make(map[writeKey]string),
	}
	for _, o := range opts {
		o(s)
	}
	for _, p := range s.include {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q: %w", p, reconcile.ErrValidation)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open output dir: %w", err)
	}
	s.root = root
	return s, nil
}

// Close releases the root directory handle.
func (s *Sink) Close() error {
	return s.root.Close()
}

// Upsert writes every item that has content, is included, and changed since
// this session's last write to the same path. A rejected or failed item does not stop the
// others; all failures are joined into the returned error.
func (s *Sink) Upsert(ctx context.Context, sessionID string, p reconcile.Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.finalOnly && p.Phase != reconcile.PhaseLoading {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, it := range p.Items {
		if !it.HasContent() || !s.included(it.Name) {
			continue
		}
		name, err := localName(it.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		key := writeKey{session: sessionID, path: name}
		if prev, ok := s.written[key]; ok && prev == it.Content {
			continue
		}
		if err := s.write(name, it.Content); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", it.Name, err))
			continue
		}
		s.written[key] = it.Content
		s.logger.Debug("fs.item.written",
			slog.String("sessionId", sessionID),
			slog.Int("index", it.Index),
			slog.String("path", name),
			slog.Int("bytes", len(it.Content)),
		)
	}
	return errors.Join(errs...)
}

func (s *Sink) included(name string) bool {
	if len(s.include) == 0 {
		return true
	}
	for _, p := range s.include {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (s *Sink) write(name, content string) error {
	if dir := filepath.Dir(name); dir != "." {
		if err := s.root.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return s.root.WriteFile(name, []byte(content), 0o644)
}

// localName converts a slash-separated item name into a path that stays
// inside the root.
func localName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("item has no name: %w", reconcile.ErrValidation)
	}
	p := filepath.FromSlash(name)
	if !filepath.IsLocal(p) {
		return "", fmt.Errorf("item name %q escapes the output dir: %w", name, reconcile.ErrValidation)
	}
	return filepath.Clean(p), nil
}
