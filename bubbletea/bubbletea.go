// Package bubbletea provides a Bubble Tea TUI that shows reconcile sessions
// as they stream: one row per item with its status, and a live preview of
// the selected item's content.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/reconcile"
)

// WorkFunc produces progress. It receives a sink that forwards every upsert
// to the TUI and blocks until the work completes or the context is
// cancelled.
type WorkFunc func(ctx context.Context, sink reconcile.Sink) error

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. The context is used for graceful shutdown: when cancelled, the
// program quits.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// ProgressMsg carries one progress snapshot to the model.
type ProgressMsg struct {
	SessionID string
	Progress  reconcile.Progress
}

// DoneMsg signals that the work function has returned.
type DoneMsg struct {
	Err error
}

// Interface compliance check.
var _ reconcile.Sink = sink{}

// sink forwards upserts to the model's event channel.
type sink struct {
	ch chan<- ProgressMsg
}

// Upsert implements reconcile.Sink. It blocks until the model has room for
// the snapshot or ctx is done.
func (s sink) Upsert(ctx context.Context, sessionID string, p reconcile.Progress) error {
	select {
	case s.ch <- ProgressMsg{SessionID: sessionID, Progress: p}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startWork runs the work function in a goroutine and signals completion.
func startWork(ctx context.Context, work WorkFunc, ch chan ProgressMsg, doneCh chan<- error) tea.Cmd {
	return func() tea.Msg {
		err := work(ctx, sink{ch: ch})
		close(ch)
		doneCh <- err
		return nil
	}
}

// listenForProgress waits for the next snapshot from the channel. When the
// channel closes, it reads the error from doneCh and returns DoneMsg.
func listenForProgress(ch <-chan ProgressMsg, doneCh <-chan error) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return DoneMsg{Err: <-doneCh}
		}
		return msg
	}
}
