package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/fwojciec/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "idle", reconcile.SessionIdle.String())
	assert.Equal(t, "started", reconcile.SessionStarted.String())
	assert.Equal(t, "finished", reconcile.SessionFinished.String())
	assert.Equal(t, "SessionState(9)", reconcile.SessionState(9).String())
}

func startedSession(t *testing.T) *reconcile.Session {
	t.Helper()
	now := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	c := newController(
		reconcile.WithClock(func() time.Time { return now }),
		reconcile.WithIDGenerator(func() string { return "sess-123" }),
	)
	return c.Start(context.Background(), reconcile.Text{
		Chunk: `{"files":[{"name":"a","yml_content":"x"},{"name":"b",`,
	})
}

func TestSession_Fields(t *testing.T) {
	t.Parallel()
	s := startedSession(t)
	assert.Equal(t, "sess-123", s.ID)
	assert.Equal(t, "file", s.Kind)
	assert.Equal(t, time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC), s.CreatedAt)
	assert.Equal(t, s.CreatedAt, s.UpdatedAt)
	assert.NotNil(t, s.Snapshot())
	assert.Len(t, s.Items(), 2)
}

func TestSession_Progress(t *testing.T) {
	t.Parallel()
	s := startedSession(t)
	p := s.Progress(reconcile.PhaseProgress)
	assert.Equal(t, "sess-123", p.SessionID)
	assert.Equal(t, "file", p.Kind)
	assert.Equal(t, reconcile.PhaseProgress, p.Phase)
	assert.Equal(t, "Processing… (1/2)", p.Text)
	done, total := p.Counts()
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, total)

	// Snapshots are copies.
	p.Items[0].Name = "changed"
	assert.Equal(t, "a", s.Items()[0].Name)
}

func TestSession_MarkCompleted(t *testing.T) {
	t.Parallel()
	s := startedSession(t)
	require.NoError(t, s.MarkFailed(0, "E"))
	require.NoError(t, s.MarkCompleted(0, "f1", 2))

	it := s.Items()[0]
	assert.Equal(t, reconcile.StatusCompleted, it.Status)
	assert.Empty(t, it.Error)
	assert.Equal(t, "f1", it.ID)
	assert.Equal(t, 2, it.Version)

	// Zero values keep what is recorded.
	require.NoError(t, s.MarkCompleted(0, "", 0))
	assert.Equal(t, "f1", s.Items()[0].ID)
	assert.Equal(t, 2, s.Items()[0].Version)
}

func TestSession_MarkFailed(t *testing.T) {
	t.Parallel()
	s := startedSession(t)
	require.NoError(t, s.MarkFailed(1, "boom"))
	it := s.Items()[1]
	assert.Equal(t, reconcile.StatusFailed, it.Status)
	assert.Equal(t, "boom", it.Error)
}

func TestSession_MarkUnknownPosition(t *testing.T) {
	t.Parallel()
	s := startedSession(t)
	assert.ErrorIs(t, s.MarkCompleted(5, "", 0), reconcile.ErrValidation)
	assert.ErrorIs(t, s.MarkFailed(-1, "x"), reconcile.ErrValidation)
}

func TestSession_MarkSurvivesDeltas(t *testing.T) {
	t.Parallel()
	c := newController()
	ctx := context.Background()
	s := c.Start(ctx, nil)
	c.Delta(ctx, s, reconcile.Text{Chunk: `{"files":[{"name":"a","yml_content":"x"}`})
	require.NoError(t, s.MarkCompleted(0, "f1", 1))
	c.Delta(ctx, s, reconcile.Text{Chunk: `,{"name":"b","yml_content":"y"}`})

	it := s.Items()[0]
	assert.Equal(t, reconcile.StatusCompleted, it.Status)
	assert.Equal(t, "f1", it.ID)
}
