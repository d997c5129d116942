package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/reconcile"
	"github.com/fwojciec/reconcile/goldmark"
)

var _ tea.Model = Model{}

const (
	// maxPreviewLines bounds how much of an item the preview renders; the
	// tail is kept so growing content stays visible.
	maxPreviewLines = 500
	nameWidth       = 32
)

// Model is the Bubble Tea model for the reconcile TUI.
type Model struct {
	// Viewport shows the preview of the selected item. Exported for test
	// access.
	Viewport viewport.Model
	// Spinner animates the status line while work is running.
	Spinner spinner.Model

	work   WorkFunc
	theme  reconcile.Theme
	styles Styles

	sessions []*sessionView
	index    map[string]int
	// selected is the position of the selected item in rows().
	selected int
	// follow keeps the selection on the most recently updated item until
	// the user moves it.
	follow bool

	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	eventCh chan ProgressMsg
	doneCh  chan error
	err     error

	width  int
	height int
	ready  bool
}

type sessionView struct {
	id       string
	progress reconcile.Progress
}

type row struct {
	session int
	item    int
}

// New creates a TUI Model that runs work and shows the progress it emits.
func New(work WorkFunc, theme reconcile.Theme) Model {
	styles := NewStyles(theme)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Accent))
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		Spinner:  sp,
		work:     work,
		theme:    theme,
		styles:   styles,
		index:    make(map[string]int),
		follow:   true,
		running:  true,
		ctx:      ctx,
		cancel:   cancel,
		eventCh:  make(chan ProgressMsg, 256),
		doneCh:   make(chan error, 1),
		selected: -1,
	}
}

// Running reports whether the work function is still running.
func (m Model) Running() bool { return m.running }

// Err returns the error the work function failed with, if any.
func (m Model) Err() error { return m.err }

// Selected returns the currently selected item.
func (m Model) Selected() (reconcile.Item, bool) {
	r, ok := m.selectedRow()
	if !ok {
		return reconcile.Item{}, false
	}
	return m.sessions[r.session].progress.Items[r.item], true
}

// Progress returns the latest snapshot of the session with the given id.
func (m Model) Progress(sessionID string) (reconcile.Progress, bool) {
	i, ok := m.index[sessionID]
	if !ok {
		return reconcile.Progress{}, false
	}
	return m.sessions[i].progress, true
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.Spinner.Tick,
		startWork(m.ctx, m.work, m.eventCh, m.doneCh),
		listenForProgress(m.eventCh, m.doneCh),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.Viewport = viewport.New(msg.Width, 1)
			m.ready = true
		}
		return m.refresh(), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ProgressMsg:
		m = m.apply(msg)
		return m.refresh(), listenForProgress(m.eventCh, m.doneCh)

	case DoneMsg:
		m.running = false
		m.cancel()
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.err = msg.Err
		}
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	var b strings.Builder
	for _, l := range m.listLines() {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Muted.Render(strings.Repeat("─", max(m.width, 1))))
	b.WriteString("\n")
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.running {
			m.cancel()
			return m, nil
		}
		return m, tea.Quit
	case "q":
		if m.running {
			return m, nil
		}
		return m, tea.Quit
	case "up", "k":
		return m.move(-1), nil
	case "down", "j":
		return m.move(1), nil
	case "f", "end":
		m.follow = true
		m = m.followLatest()
		return m.refresh(), nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

func (m Model) move(delta int) Model {
	n := len(m.rows())
	if n == 0 {
		return m
	}
	m.follow = false
	m.selected = min(max(m.selected+delta, 0), n-1)
	m = m.refresh()
	m.Viewport.GotoTop()
	return m
}

// apply stores a snapshot. Sessions keep the order in which they first
// reported progress.
func (m Model) apply(msg ProgressMsg) Model {
	i, ok := m.index[msg.SessionID]
	if !ok {
		i = len(m.sessions)
		m.index[msg.SessionID] = i
		m.sessions = append(m.sessions, &sessionView{id: msg.SessionID})
	}
	m.sessions[i].progress = msg.Progress
	if m.follow {
		m = m.selectLast(i)
	}
	return m
}

// followLatest selects the last item of the last session that has items.
func (m Model) followLatest() Model {
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if len(m.sessions[i].progress.Items) > 0 {
			return m.selectLast(i)
		}
	}
	return m
}

// selectLast selects the last item of session i that has content, or its
// last item when none has.
func (m Model) selectLast(session int) Model {
	items := m.sessions[session].progress.Items
	if len(items) == 0 {
		return m
	}
	target := len(items) - 1
	for j := len(items) - 1; j >= 0; j-- {
		if items[j].HasContent() {
			target = j
			break
		}
	}
	for k, r := range m.rows() {
		if r.session == session && r.item == target {
			m.selected = k
			break
		}
	}
	return m
}

func (m Model) rows() []row {
	var rows []row
	for si, s := range m.sessions {
		for ii := range s.progress.Items {
			rows = append(rows, row{session: si, item: ii})
		}
	}
	return rows
}

func (m Model) selectedRow() (row, bool) {
	rows := m.rows()
	if m.selected < 0 || m.selected >= len(rows) {
		return row{}, false
	}
	return rows[m.selected], true
}

// refresh recomputes the layout and the preview content.
func (m Model) refresh() Model {
	if !m.ready {
		return m
	}
	list := len(m.listLines())
	m.Viewport.Width = m.width
	m.Viewport.Height = max(m.height-list-2, 1)
	m.Viewport.SetContent(m.preview())
	if m.follow {
		m.Viewport.GotoBottom()
	}
	return m
}

// listLines renders the session headers and item rows, scrolled so that the
// selected row stays visible within a third of the screen.
func (m Model) listLines() []string {
	var lines []string
	selLine := -1
	k := 0
	for _, s := range m.sessions {
		p := s.progress
		header := m.styles.Accent.Render(sanitize(p.Kind)+" · "+p.Text) + "  " + m.styles.Muted.Render(shortID(s.id))
		lines = append(lines, header)
		for _, it := range p.Items {
			if k == m.selected {
				selLine = len(lines)
			}
			lines = append(lines, m.itemLine(it, k == m.selected))
			k++
		}
	}
	if len(lines) == 0 {
		return []string{m.styles.Muted.Render("Waiting for progress…")}
	}

	limit := max(m.height/3, 3)
	if len(lines) <= limit {
		return lines
	}
	start := 0
	if selLine >= limit {
		start = selLine - limit + 1
	}
	return lines[start : start+limit]
}

func (m Model) itemLine(it reconcile.Item, selected bool) string {
	cursor := "  "
	name := column(sanitize(it.Name), min(nameWidth, max(m.width/2, 8)))
	if selected {
		cursor = "▸ "
		name = m.styles.Selected.Render(name)
	}
	status := m.styles.Status(it.Status).Render("● " + string(it.Status))
	line := cursor + name + " " + status
	if n := lineCount(it.Content); n > 0 {
		line += m.styles.Muted.Render(fmt.Sprintf("  %d lines", n))
	}
	if it.Version != 0 {
		line += m.styles.Muted.Render(fmt.Sprintf("  v%d", it.Version))
	}
	if it.Error != "" {
		line += "  " + m.styles.Failed.Render(truncateWidth(sanitize(firstLine(it.Error)), 40))
	}
	return line
}

// preview renders the selected item's content through the markdown
// renderer, showing only its tail when it is long.
func (m Model) preview() string {
	r, ok := m.selectedRow()
	if !ok {
		return ""
	}
	p := m.sessions[r.session].progress
	it := p.Items[r.item]
	it.Name = sanitize(it.Name)
	it.Error = sanitize(it.Error)
	content, dropped := tail(sanitize(it.Content), maxPreviewLines)
	it.Content = content

	out := goldmark.RenderProgress(reconcile.Progress{
		Kind:  sanitize(p.Kind),
		Text:  p.Text,
		Items: []reconcile.Item{it},
	}, m.width, m.theme)
	if dropped > 0 {
		out = m.styles.Muted.Render(fmt.Sprintf("… %d earlier lines not shown", dropped)) + "\n" + out
	}
	return out
}

func (m Model) statusLine() string {
	if m.err != nil {
		return m.styles.Failed.Render(fmt.Sprintf("Error: %v", m.err))
	}
	if m.running {
		return m.Spinner.View() + " Streaming…  " + m.styles.Muted.Render("↑/↓ select · f follow · ctrl+c cancel")
	}
	return m.styles.Completed.Render("Done") + "  " + m.styles.Muted.Render("↑/↓ select · q quit")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}
