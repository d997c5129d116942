package reconcile_test

import (
	"testing"

	"github.com/fwojciec/reconcile"
	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	t.Parallel()
	tree := decode(t, `{"files":[{"name":"a","meta":null}],"n":3}`)

	assert.Equal(t, "a", reconcile.Extract(tree, "files.0.name", "def"))
	assert.Equal(t, float64(3), reconcile.Extract(tree, "n", nil))
	assert.Equal(t, tree, reconcile.Extract(tree, "", nil))
	assert.Equal(t, "def", reconcile.Extract(tree, "files.1.name", "def"))
	assert.Equal(t, "def", reconcile.Extract(tree, "files.x", "def"))
	assert.Equal(t, "def", reconcile.Extract(tree, "files.-1", "def"))
	assert.Nil(t, reconcile.Extract(tree, "files.0.meta", "def"), "a present null is not absent")
	assert.Equal(t, "def", reconcile.Extract(tree, "files.0.meta.x", "def"))
	assert.Equal(t, "def", reconcile.Extract(tree, "n.deeper", "def"))
	assert.Equal(t, "def", reconcile.Extract(nil, "files", "def"))
}

func TestExtractFragments(t *testing.T) {
	t.Parallel()
	schema := reconcile.DefaultSchema()

	t.Run("no collection", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, reconcile.ExtractFragments(decode(t, `{"other":[]}`), "", schema))
		assert.Nil(t, reconcile.ExtractFragments(decode(t, `{"files":[]}`), "", schema))
		assert.Nil(t, reconcile.ExtractFragments(nil, "", schema))
	})

	t.Run("complete and partial elements", func(t *testing.T) {
		t.Parallel()
		tree := decode(t, `{"files":[{"name":"a","yml_content":"x","id":"f1"},{"name":"b"},"junk"]}`)
		got := reconcile.ExtractFragments(tree, "", schema)
		assert.Equal(t, []reconcile.ItemFragment{
			{Index: 0, Name: "a", Content: "x", ID: "f1", HasName: true, HasContent: true, Valid: true},
			{Index: 1, Name: "b", HasName: true, Valid: true},
			{Index: 2},
		}, got)
	})

	t.Run("open name is withheld", func(t *testing.T) {
		t.Parallel()
		tree := decode(t, `{"files":[{"name":"a","yml_content":"x"},{"name":"par"}]}`)
		got := reconcile.ExtractFragments(tree, "files.1.name", schema)
		assert.True(t, got[0].HasName)
		assert.False(t, got[1].HasName)
		assert.Empty(t, got[1].Name)
		assert.True(t, got[1].Valid)
	})

	t.Run("open content is kept", func(t *testing.T) {
		t.Parallel()
		tree := decode(t, `{"files":[{"name":"a","yml_content":"x: par"}]}`)
		got := reconcile.ExtractFragments(tree, "files.0.yml_content", schema)
		assert.Equal(t, "x: par", got[0].Content)
		assert.True(t, got[0].HasContent)
	})

	t.Run("open id is withheld", func(t *testing.T) {
		t.Parallel()
		tree := decode(t, `{"files":[{"name":"a","id":"f"}]}`)
		got := reconcile.ExtractFragments(tree, "files.0.id", schema)
		assert.Empty(t, got[0].ID)
	})

	t.Run("custom schema", func(t *testing.T) {
		t.Parallel()
		custom := reconcile.Schema{CollectionPath: "data.metrics", NameKey: "title", ContentKey: "body"}
		tree := decode(t, `{"data":{"metrics":[{"title":"m","body":"b","id":"ignored"}]}}`)
		got := reconcile.ExtractFragments(tree, "", custom)
		assert.Equal(t, []reconcile.ItemFragment{
			{Index: 0, Name: "m", Content: "b", HasName: true, HasContent: true, Valid: true},
		}, got)
	})
}
