package bubbletea_test

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/reconcile"
	bt "github.com/fwojciec/reconcile/bubbletea"
	"github.com/stretchr/testify/require"
)

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, work bt.WorkFunc) bt.Model {
	t.Helper()
	return initModelWithSize(t, work, 80, 24)
}

// initModelWithSize creates a model with a custom terminal size.
func initModelWithSize(t *testing.T, work bt.WorkFunc, width, height int) bt.Model {
	t.Helper()
	m := bt.New(work, reconcile.DefaultTheme())
	return updateModel(t, m, tea.WindowSizeMsg{Width: width, Height: height})
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// nopWork is a work function that does nothing.
func nopWork(context.Context, reconcile.Sink) error {
	return nil
}

func progressMsg(id string, text string, items ...reconcile.Item) bt.ProgressMsg {
	return bt.ProgressMsg{SessionID: id, Progress: reconcile.Progress{
		SessionID: id,
		Kind:      "file",
		Phase:     reconcile.PhaseProgress,
		Text:      text,
		Items:     items,
	}}
}

func item(i int, name, content string) reconcile.Item {
	return reconcile.Item{Index: i, Name: name, Content: content, Status: reconcile.StatusProcessing}
}
