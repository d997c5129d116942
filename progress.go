package reconcile

import (
	"fmt"
	"time"
)

// Phase names the lifecycle step that triggered a notification.
type Phase string

const (
	PhaseCreated  Phase = "created"
	PhaseProgress Phase = "progress"
	PhaseLoading  Phase = "loading"
)

// Progress is the outward-facing snapshot handed to a Sink. It is built
// fresh for every notification and never contains holes.
type Progress struct {
	SessionID string
	Kind      string
	Phase     Phase
	Text      string
	Items     []Item
	UpdatedAt time.Time
}

// Counts returns the number of items with non-empty content and the total.
func (p Progress) Counts() (done, total int) {
	return countDone(p.Items), len(p.Items)
}

// ProgressText formats the human-readable progress line for done items with
// content out of total items.
func ProgressText(done, total int) string {
	switch {
	case done <= 0:
		return "Starting…"
	case done < total:
		return fmt.Sprintf("Processing… (%d/%d)", done, total)
	case total == 1:
		return "Processed 1 item"
	default:
		return fmt.Sprintf("Processed %d items", total)
	}
}

func countDone(items []Item) int {
	n := 0
	for _, it := range items {
		if it.HasContent() {
			n++
		}
	}
	return n
}
