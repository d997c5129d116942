package goldmark

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/reconcile"
	"github.com/mattn/go-runewidth"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// styles holds the lipgloss styles derived from a theme.
type styles struct {
	heading lipgloss.Style
	strong  lipgloss.Style
	em      lipgloss.Style
	code    lipgloss.Style
	link    lipgloss.Style
	muted   lipgloss.Style
	quote   lipgloss.Style
}

func newStyles(theme reconcile.Theme) styles {
	return styles{
		heading: lipgloss.NewStyle().Foreground(ansiColor(theme.Accent)).Bold(true),
		strong:  lipgloss.NewStyle().Bold(true),
		em:      lipgloss.NewStyle().Italic(true),
		code:    lipgloss.NewStyle().Background(ansiColor(theme.CodeBg)),
		link:    lipgloss.NewStyle().Underline(true),
		muted:   lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true),
		quote:   lipgloss.NewStyle().Foreground(ansiColor(theme.Failed)),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

// renderer walks a goldmark AST and writes styled terminal text.
type renderer struct {
	st     styles
	source []byte
	out    strings.Builder
}

func render(source []byte, width int, theme reconcile.Theme) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))
	r := &renderer{st: newStyles(theme), source: source}
	r.blocks(doc, width, "")
	return strings.TrimRight(r.out.String(), "\n")
}

// blocks renders the block children of node, separated by blank lines, with
// every output line prefixed by indent.
func (r *renderer) blocks(node ast.Node, width int, indent string) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.block(c, width, indent)
		if c.NextSibling() != nil {
			r.out.WriteString(strings.TrimRight(indent, " ") + "\n")
		}
	}
}

func (r *renderer) block(node ast.Node, width int, indent string) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		r.wrapped(r.inline(n), width, indent, indent)

	case *ast.Heading:
		r.wrapped(r.st.heading.Render(r.inline(n)), width, indent, indent)

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(r.source)); lang != "" {
			r.line(indent, r.st.muted.Render(lang))
		}
		r.code(n, indent)

	case *ast.CodeBlock:
		r.code(n, indent)

	case *ast.List:
		r.list(n, width, indent)

	case *ast.Blockquote:
		gutter := r.st.quote.Render("┃") + " "
		r.blocks(n, width, indent+gutter)

	case *ast.ThematicBreak:
		r.line(indent, r.st.muted.Render(strings.Repeat("-", min(max(width, 3), 40))))

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			r.line(indent, strings.TrimRight(string(seg.Value(r.source)), "\n"))
		}

	default:
		r.blocks(n, width, indent)
	}
}

// code writes the lines of a code block verbatim behind a muted gutter.
func (r *renderer) code(n ast.Node, indent string) {
	gutter := r.st.muted.Render("│") + " "
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		r.line(indent+gutter, strings.TrimRight(string(seg.Value(r.source)), "\n"))
	}
}

func (r *renderer) list(n *ast.List, width int, indent string) {
	num := n.Start
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		marker := "- "
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		pad := strings.Repeat(" ", runewidth.StringWidth(marker))
		first := true
		for ic := c.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				lead := indent + pad
				if first {
					lead = indent + marker
				}
				r.wrapped(r.inline(in), width, lead, indent+pad)
			default:
				if first {
					r.line(indent, strings.TrimRight(marker, " "))
				}
				r.block(in, width, indent+pad)
			}
			first = false
		}
	}
}

// wrapped word-wraps s to fit width after the indent and writes it, using
// lead for the first line and cont for the rest.
func (r *renderer) wrapped(s string, width int, lead, cont string) {
	w := max(width-lipgloss.Width(cont), 10)
	lines := strings.Split(lipgloss.NewStyle().Width(w).Render(s), "\n")
	for i, l := range lines {
		prefix := cont
		if i == 0 {
			prefix = lead
		}
		r.line(prefix, strings.TrimRight(l, " "))
	}
}

func (r *renderer) line(prefix, s string) {
	r.out.WriteString(prefix)
	r.out.WriteString(s)
	r.out.WriteByte('\n')
}

func (r *renderer) inline(node ast.Node) string {
	var b strings.Builder
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.inlineNode(c, &b)
	}
	return b.String()
}

func (r *renderer) inlineNode(node ast.Node, b *strings.Builder) {
	switch n := node.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(r.source))
		switch {
		case n.HardLineBreak():
			b.WriteByte('\n')
		case n.SoftLineBreak():
			b.WriteByte(' ')
		}

	case *ast.String:
		b.Write(n.Value)

	case *ast.Emphasis:
		if n.Level == 1 {
			b.WriteString(r.st.em.Render(r.inline(n)))
		} else {
			b.WriteString(r.st.strong.Render(r.inline(n)))
		}

	case *ast.CodeSpan:
		b.WriteString(r.st.code.Render(r.inline(n)))

	case *ast.Link:
		b.WriteString(r.st.link.Render(r.inline(n)))
		b.WriteString(" " + r.st.muted.Render("("+string(n.Destination)+")"))

	case *ast.Image:
		b.WriteString(r.st.link.Render(r.inline(n)))
		b.WriteString(" " + r.st.muted.Render("("+string(n.Destination)+")"))

	case *ast.AutoLink:
		b.WriteString(r.st.link.Render(string(n.URL(r.source))))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(r.source))
		}

	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			r.inlineNode(c, b)
		}
	}
}
