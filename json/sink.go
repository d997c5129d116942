package json

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fwojciec/reconcile"
	"github.com/gowebpki/jcs"
)

// Interface compliance check.
var _ reconcile.Sink = (*FileSink)(nil)

// FileSink persists the latest snapshot of every session as
// <dir>/<session id>.json. Writes whose observable content matches the
// previous write for the session are skipped; the timestamp alone does not
// count as a change.
type FileSink struct {
	dir string

	mu      sync.Mutex
	digests map[string][sha256.Size]byte
}

// NewFileSink creates a FileSink rooted at dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir, digests: make(map[string][sha256.Size]byte)}
}

// Path returns the file a session's snapshot is written to.
func (s *FileSink) Path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// Upsert implements [reconcile.Sink].
func (s *FileSink) Upsert(ctx context.Context, sessionID string, p reconcile.Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return fmt.Errorf("invalid session id %q: %w", sessionID, reconcile.ErrValidation)
	}
	sum, err := digest(p)
	if err != nil {
		return fmt.Errorf("digest snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.digests[sessionID]; ok && prev == sum {
		return nil
	}
	if err := Save(s.Path(sessionID), p); err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	s.digests[sessionID] = sum
	return nil
}

// digest hashes the canonical (RFC 8785) form of the snapshot without its
// timestamp.
func digest(p reconcile.Progress) ([sha256.Size]byte, error) {
	env := toEnvelope(p)
	raw, err := json.Marshal(struct {
		SessionID string    `json:"session_id"`
		Kind      string    `json:"kind"`
		Phase     string    `json:"phase"`
		Text      string    `json:"text"`
		Items     []itemDTO `json:"items"`
	}{env.SessionID, env.Kind, env.Phase, env.Text, env.Items})
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(canon), nil
}
