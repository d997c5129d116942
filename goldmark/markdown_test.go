package goldmark_test

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/reconcile"
	"github.com/fwojciec/reconcile/goldmark"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stripANSI(s string) string {
	// Matches SGR, cursor movement, and other CSI sequences.
	re := regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	return re.ReplaceAllString(s, "")
}

func TestMain(m *testing.M) {
	// Force ANSI color output so styled elements produce visible escape
	// codes that we can assert against.
	lipgloss.SetColorProfile(termenv.ANSI)
	os.Exit(m.Run())
}

func TestRender(t *testing.T) {
	t.Parallel()

	theme := reconcile.DefaultTheme()

	t.Run("empty input returns empty string", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "", goldmark.Render("", 80, theme))
	})

	t.Run("plain paragraph", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "hello world", stripANSI(goldmark.Render("hello world", 80, theme)))
	})

	t.Run("heading renders content with distinct styling", func(t *testing.T) {
		t.Parallel()
		heading := goldmark.Render("# Title", 80, theme)
		paragraph := goldmark.Render("Title", 80, theme)
		assert.Equal(t, "Title", stripANSI(heading))
		assert.NotEqual(t, heading, paragraph)
	})

	t.Run("emphasis", func(t *testing.T) {
		t.Parallel()
		assert.Contains(t, stripANSI(goldmark.Render("**bold** and *italic*", 80, theme)), "bold and italic")
		assert.Contains(t, stripANSI(goldmark.Render("***bold italic***", 80, theme)), "bold italic")
	})

	t.Run("inline code", func(t *testing.T) {
		t.Parallel()
		assert.Contains(t, stripANSI(goldmark.Render("`code`", 80, theme)), "code")
	})

	t.Run("fenced code block preserves content without reflow", func(t *testing.T) {
		t.Parallel()
		src := "```yaml\nname: a very long line that will not be wrapped\n```"
		result := stripANSI(goldmark.Render(src, 20, theme))
		lines := strings.Split(result, "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "yaml", lines[0])
		assert.Equal(t, "│ name: a very long line that will not be wrapped", lines[1])
	})

	t.Run("indented code block", func(t *testing.T) {
		t.Parallel()
		src := "paragraph\n\n    indented code\n    more code"
		result := stripANSI(goldmark.Render(src, 80, theme))
		assert.Contains(t, result, "│ indented code")
		assert.Contains(t, result, "│ more code")
	})

	t.Run("bullet list", func(t *testing.T) {
		t.Parallel()
		result := stripANSI(goldmark.Render("- one\n- two\n- three", 80, theme))
		assert.Equal(t, "- one\n- two\n- three", result)
	})

	t.Run("ordered list keeps start number", func(t *testing.T) {
		t.Parallel()
		result := stripANSI(goldmark.Render("3. first\n4. second", 80, theme))
		assert.Equal(t, "3. first\n4. second", result)
	})

	t.Run("nested list is indented", func(t *testing.T) {
		t.Parallel()
		result := stripANSI(goldmark.Render("- outer\n  - inner one\n  - inner two", 80, theme))
		assert.Equal(t, "- outer\n  - inner one\n  - inner two", result)
	})

	t.Run("list item continuation lines are indented", func(t *testing.T) {
		t.Parallel()
		src := "- this is a very long list item that should wrap and have continuation lines properly indented"
		lines := strings.Split(stripANSI(goldmark.Render(src, 30, theme)), "\n")
		require.Greater(t, len(lines), 1)
		assert.True(t, strings.HasPrefix(lines[0], "- "))
		for _, line := range lines[1:] {
			assert.True(t, strings.HasPrefix(line, "  "), "continuation line should be indented: %q", line)
		}
	})

	t.Run("paragraph wraps to width", func(t *testing.T) {
		t.Parallel()
		long := "word1 word2 word3 word4 word5 word6 word7 word8 word9 word10 word11 word12"
		result := stripANSI(goldmark.Render(long, 30, theme))
		lines := strings.Split(result, "\n")
		assert.Greater(t, len(lines), 1)
		for _, l := range lines {
			assert.LessOrEqual(t, len(l), 30)
		}
		assert.Contains(t, result, "word12")
	})

	t.Run("blockquote has a gutter", func(t *testing.T) {
		t.Parallel()
		result := stripANSI(goldmark.Render("> quoted text", 80, theme))
		assert.Equal(t, "┃ quoted text", result)
	})

	t.Run("link and image show text and URL", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "click (https://example.com)", stripANSI(goldmark.Render("[click](https://example.com)", 80, theme)))
		assert.Equal(t, "alt text (img.png)", stripANSI(goldmark.Render("![alt text](img.png)", 80, theme)))
	})

	t.Run("blocks are separated by blank lines", func(t *testing.T) {
		t.Parallel()
		result := stripANSI(goldmark.Render("above\n\n---\n\nbelow", 80, theme))
		parts := strings.Split(result, "\n")
		require.Len(t, parts, 5)
		assert.Equal(t, "above", parts[0])
		assert.Empty(t, parts[1])
		assert.True(t, strings.HasPrefix(parts[2], "---"))
		assert.Equal(t, "below", parts[4])
	})

	t.Run("width zero defaults to 80", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "hello world", stripANSI(goldmark.Render("hello world", 0, theme)))
	})
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	t.Run("formats items with status and content", func(t *testing.T) {
		t.Parallel()
		p := reconcile.Progress{
			Kind: "file",
			Text: "Processing… (1/2)",
			Items: []reconcile.Item{
				{Index: 0, Name: "metrics/a.yml", Content: "x: 1", Status: reconcile.StatusProcessing, Version: 1},
				{Index: 1, Name: "b_c.yml", Status: reconcile.StatusFailed, Error: "boom", ID: "id-1"},
			},
		}
		want := "# file · Processing… (1/2)\n" +
			"\n## metrics/a.yml\n\n*processing* · v1\n\n```yaml\nx: 1\n```\n" +
			"\n## b\\_c.yml\n\n*failed* · `id-1`\n\n> boom\n"
		assert.Equal(t, want, goldmark.Markdown(p))
	})

	t.Run("uses a longer fence when content has backticks", func(t *testing.T) {
		t.Parallel()
		p := reconcile.Progress{Text: "Processed 1 items", Items: []reconcile.Item{
			{Name: "doc.md", Content: "```go\nx\n```\n", Status: reconcile.StatusCompleted},
		}}
		md := goldmark.Markdown(p)
		assert.Contains(t, md, "\n````markdown\n```go\nx\n```\n````\n")
	})

	t.Run("labels unnamed items by position", func(t *testing.T) {
		t.Parallel()
		p := reconcile.Progress{Text: "Processing…", Items: []reconcile.Item{{Index: 4, Content: "x"}}}
		assert.Contains(t, goldmark.Markdown(p), "## (item 4)")
	})
}

func TestRenderProgress(t *testing.T) {
	t.Parallel()
	p := reconcile.Progress{
		Kind: "file",
		Text: "Processed 1 items",
		Items: []reconcile.Item{
			{Name: "a.yml", Content: "name: a\nvalue: 1", Status: reconcile.StatusCompleted},
		},
	}
	result := stripANSI(goldmark.RenderProgress(p, 80, reconcile.DefaultTheme()))
	assert.Equal(t, "file · Processed 1 items\n\na.yml\n\ncompleted\n\nyaml\n│ name: a\n│ value: 1", result)
}
