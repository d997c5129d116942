package json_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/reconcile"
	reconcilejson "github.com/fwojciec/reconcile/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProgress() reconcile.Progress {
	return reconcile.Progress{
		SessionID: "sess-123",
		Kind:      "file",
		Phase:     reconcile.PhaseProgress,
		Text:      "Processing… (1/2)",
		Items: []reconcile.Item{
			{Index: 0, Name: "model_a", Content: "a: 1", Status: reconcile.StatusCompleted, ID: "f-1", Version: 2},
			{Index: 2, Name: "model_b", Status: reconcile.StatusFailed, Error: "boom"},
		},
		UpdatedAt: time.Date(2026, 2, 18, 12, 5, 0, 0, time.UTC),
	}
}

func TestMarshalProgress_RoundTrip(t *testing.T) {
	t.Parallel()
	p := sampleProgress()

	data, err := reconcilejson.MarshalProgress(p)
	require.NoError(t, err)

	got, err := reconcilejson.UnmarshalProgress(data)
	require.NoError(t, err)

	assert.Equal(t, p.SessionID, got.SessionID)
	assert.Equal(t, p.Kind, got.Kind)
	assert.Equal(t, p.Phase, got.Phase)
	assert.Equal(t, p.Text, got.Text)
	assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt), "UpdatedAt mismatch")
	assert.Equal(t, p.Items, got.Items)
}

func TestMarshalProgress_V1Envelope(t *testing.T) {
	t.Parallel()
	data, err := reconcilejson.MarshalProgress(sampleProgress())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(1), raw["version"])
	assert.Equal(t, "sess-123", raw["session_id"])
	assert.Equal(t, "progress", raw["phase"])

	items, ok := raw["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	second := items[1].(map[string]any)
	assert.Equal(t, "failed", second["status"])
	assert.Equal(t, "boom", second["error"])
	assert.NotContains(t, second, "id")
	assert.NotContains(t, second, "version")
}

func TestUnmarshalProgress_UnsupportedVersion(t *testing.T) {
	t.Parallel()
	_, err := reconcilejson.UnmarshalProgress([]byte(`{"version":2,"items":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported envelope version")
}

func TestUnmarshalProgress_UnknownStatus(t *testing.T) {
	t.Parallel()
	_, err := reconcilejson.UnmarshalProgress([]byte(`{"version":1,"items":[{"index":0,"status":"weird"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown item status")
}

func TestSave_And_Load(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "deep", "snapshot.json")
	p := sampleProgress()

	require.NoError(t, reconcilejson.Save(path, p))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	got, err := reconcilejson.Load(path)
	require.NoError(t, err)
	assert.Equal(t, p.Items, got.Items)
}

func TestLoad_NonexistentFile(t *testing.T) {
	t.Parallel()
	_, err := reconcilejson.Load("/nonexistent/path/snapshot.json")
	assert.Error(t, err)
}

func TestFileSink_WritesSnapshot(t *testing.T) {
	t.Parallel()
	sink := reconcilejson.NewFileSink(t.TempDir())
	p := sampleProgress()

	require.NoError(t, sink.Upsert(context.Background(), p.SessionID, p))

	got, err := reconcilejson.Load(sink.Path(p.SessionID))
	require.NoError(t, err)
	assert.Equal(t, p.Items, got.Items)
}

func TestFileSink_SkipsUnchangedSnapshot(t *testing.T) {
	t.Parallel()
	sink := reconcilejson.NewFileSink(t.TempDir())
	p := sampleProgress()
	ctx := context.Background()

	require.NoError(t, sink.Upsert(ctx, p.SessionID, p))

	// Only the timestamp differs: the file keeps the first write.
	later := p
	later.UpdatedAt = p.UpdatedAt.Add(time.Minute)
	require.NoError(t, sink.Upsert(ctx, p.SessionID, later))
	got, err := reconcilejson.Load(sink.Path(p.SessionID))
	require.NoError(t, err)
	assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt))

	// A content change is written.
	changed := later
	changed.Phase = reconcile.PhaseLoading
	require.NoError(t, sink.Upsert(ctx, p.SessionID, changed))
	got, err = reconcilejson.Load(sink.Path(p.SessionID))
	require.NoError(t, err)
	assert.Equal(t, reconcile.PhaseLoading, got.Phase)
	assert.True(t, later.UpdatedAt.Equal(got.UpdatedAt))
}

func TestFileSink_RejectsPathLikeSessionID(t *testing.T) {
	t.Parallel()
	sink := reconcilejson.NewFileSink(t.TempDir())
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		err := sink.Upsert(context.Background(), id, sampleProgress())
		assert.ErrorIs(t, err, reconcile.ErrValidation, id)
	}
}

func TestFileSink_CanceledContext(t *testing.T) {
	t.Parallel()
	sink := reconcilejson.NewFileSink(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sink.Upsert(ctx, "s", sampleProgress())
	assert.ErrorIs(t, err, context.Canceled)
}
