package fs

import (
	"fmt"
	iofs "io/fs"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/reconcile"
)

// Glob returns the slash-separated paths of regular files under dir matching
// pattern. Supports ** for recursive matching.
func Glob(dir, pattern string) ([]string, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern is required: %w", reconcile.ErrValidation)
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, reconcile.ErrValidation)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", dir, reconcile.ErrValidation)
	}

	var matches []string
	err = doublestar.GlobWalk(os.DirFS(dir), pattern, func(path string, d iofs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		matches = append(matches, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error matching pattern: %w", err)
	}
	return matches, nil
}

// Seed reads the files under dir matching pattern into a decoded document of
// the given schema, suitable as the initial fragment of a session that edits
// existing files. Item names are paths relative to dir.
func Seed(dir, pattern string, schema reconcile.Schema) (reconcile.Decoded, error) {
	if err := schema.Validate(); err != nil {
		return reconcile.Decoded{}, err
	}
	paths, err := Glob(dir, pattern)
	if err != nil {
		return reconcile.Decoded{}, err
	}

	fsys := os.DirFS(dir)
	elems := make([]any, 0, len(paths))
	for _, p := range paths {
		b, err := iofs.ReadFile(fsys, p)
		if err != nil {
			return reconcile.Decoded{}, fmt.Errorf("read %s: %w", p, err)
		}
		elems = append(elems, map[string]any{
			schema.NameKey:    p,
			schema.ContentKey: string(b),
		})
	}

	segs := strings.Split(schema.CollectionPath, ".")
	var v any = elems
	for i := len(segs) - 1; i > 0; i-- {
		v = map[string]any{segs[i]: v}
	}
	return reconcile.Decoded{Value: map[string]any{segs[0]: v}}, nil
}
