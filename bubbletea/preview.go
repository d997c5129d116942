package bubbletea

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

const tabWidth = 4

// sanitize strips ANSI escape sequences and control characters from streamed
// content so it cannot move the cursor or restyle the TUI. Newlines are kept,
// CRLF becomes LF and tabs are expanded to spaces.
func sanitize(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\t':
			b.WriteString(strings.Repeat(" ", tabWidth))
		case r < 0x20, r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tail keeps the last maxLines lines of s. It returns the kept text and the
// number of lines dropped from the front. A trailing newline does not count
// as an extra line.
func tail(s string, maxLines int) (string, int) {
	if s == "" || maxLines <= 0 {
		return s, 0
	}
	trailing := strings.HasSuffix(s, "\n")
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	if len(lines) <= maxLines {
		return s, 0
	}
	dropped := len(lines) - maxLines
	out := strings.Join(lines[dropped:], "\n")
	if trailing {
		out += "\n"
	}
	return out, dropped
}

// truncateWidth cuts s to at most width terminal cells without splitting a
// grapheme cluster, appending an ellipsis when anything was removed.
func truncateWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if uniseg.StringWidth(s) <= width {
		return s
	}
	var b strings.Builder
	used := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		w := g.Width()
		if used+w > width-1 {
			break
		}
		b.WriteString(g.Str())
		used += w
	}
	b.WriteString("…")
	return b.String()
}

// column fits s into exactly width cells.
func column(s string, width int) string {
	return runewidth.FillRight(truncateWidth(s, width), width)
}
