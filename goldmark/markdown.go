// Package goldmark renders markdown text, and progress snapshots expressed as
// markdown, to ANSI-styled terminal output using goldmark for parsing and
// lipgloss for styling.
package goldmark

import (
	"fmt"
	"path"
	"strings"

	"github.com/fwojciec/reconcile"
)

// Render parses markdown source and returns ANSI-styled terminal output.
// Paragraphs and list items are word-wrapped to width. Code blocks are
// rendered at full width without reflow.
func Render(source string, width int, theme reconcile.Theme) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	return render([]byte(source), width, theme)
}

// RenderProgress renders a progress snapshot for the terminal.
func RenderProgress(p reconcile.Progress, width int, theme reconcile.Theme) string {
	return Render(Markdown(p), width, theme)
}

// Markdown formats a progress snapshot as a markdown document: a heading with
// the progress text, then one section per item with its status line, its
// content in a fenced block and its error, if any, as a quote.
func Markdown(p reconcile.Progress) string {
	var b strings.Builder
	title := p.Text
	if p.Kind != "" {
		title = p.Kind + " · " + title
	}
	fmt.Fprintf(&b, "# %s\n", escape(title))

	for _, it := range p.Items {
		name := it.Name
		if name == "" {
			name = fmt.Sprintf("(item %d)", it.Index)
		}
		fmt.Fprintf(&b, "\n## %s\n\n", escape(name))

		meta := []string{"*" + string(it.Status) + "*"}
		if it.Version != 0 {
			meta = append(meta, fmt.Sprintf("v%d", it.Version))
		}
		if it.ID != "" {
			meta = append(meta, "`"+it.ID+"`")
		}
		b.WriteString(strings.Join(meta, " · "))
		b.WriteString("\n")

		if it.Content != "" {
			fence := fenceFor(it.Content)
			fmt.Fprintf(&b, "\n%s%s\n%s", fence, language(it.Name), it.Content)
			if !strings.HasSuffix(it.Content, "\n") {
				b.WriteString("\n")
			}
			b.WriteString(fence + "\n")
		}
		if it.Error != "" {
			for _, l := range strings.Split(it.Error, "\n") {
				b.WriteString("\n> " + escape(l))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// fenceFor returns a backtick fence longer than any backtick run in s.
func fenceFor(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

var languages = map[string]string{
	".yml":  "yaml",
	".yaml": "yaml",
	".json": "json",
	".sql":  "sql",
	".md":   "markdown",
}

func language(name string) string {
	return languages[strings.ToLower(path.Ext(name))]
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	"#", `\#`,
)

func escape(s string) string {
	return escaper.Replace(s)
}
