package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// SessionState indicates the lifecycle state of a Session.
type SessionState int

const (
	SessionIdle     SessionState = iota // Before Start.
	SessionStarted                      // Accepting deltas.
	SessionFinished                     // Finish applied; terminal.
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionStarted:
		return "started"
	case SessionFinished:
		return "finished"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Session is one streamed payload, from Start to Finish. It is owned by the
// caller that started it and must be driven by one goroutine at a time;
// distinct sessions share nothing.
type Session struct {
	ID        string
	Kind      string
	CreatedAt time.Time
	UpdatedAt time.Time

	state    SessionState
	text     strings.Builder
	snapshot any
	open     string
	slots    []*Item
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState { return s.state }

// Text returns the raw text accumulated from Text fragments.
func (s *Session) Text() string { return s.text.String() }

// Snapshot returns the last best-effort value tree, or nil.
func (s *Session) Snapshot() any { return s.snapshot }

// Items returns copies of the session's items in order of first appearance.
// Positions where nothing usable was observed are omitted.
func (s *Session) Items() []Item { return Compact(s.slots) }

// Progress builds a fresh snapshot of the session for a sink.
func (s *Session) Progress(phase Phase) Progress {
	items := s.Items()
	return Progress{
		SessionID: s.ID,
		Kind:      s.Kind,
		Phase:     phase,
		Text:      ProgressText(countDone(items), len(items)),
		Items:     items,
		UpdatedAt: s.UpdatedAt,
	}
}

// MarkCompleted promotes the item at position index to completed once the
// work it describes has been carried out. id and version are recorded when
// non-zero.
func (s *Session) MarkCompleted(index int, id string, version int) error {
	it, err := s.slot(index)
	if err != nil {
		return err
	}
	c := *it
	c.Status = StatusCompleted
	c.Error = ""
	if id != "" {
		c.ID = id
	}
	if version != 0 {
		c.Version = version
	}
	s.slots[index] = &c
	return nil
}

// MarkFailed marks the item at position index as failed with msg.
func (s *Session) MarkFailed(index int, msg string) error {
	it, err := s.slot(index)
	if err != nil {
		return err
	}
	c := *it
	c.Status = StatusFailed
	c.Error = msg
	s.slots[index] = &c
	return nil
}

func (s *Session) slot(index int) (*Item, error) {
	if index < 0 || index >= len(s.slots) || s.slots[index] == nil {
		return nil, fmt.Errorf("no item at position %d: %w", index, ErrValidation)
	}
	return s.slots[index], nil
}
