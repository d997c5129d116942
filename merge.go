package reconcile

import "strings"

// Reconciler merges item fragments into a positional item list.
//
// Item lists are slot arrays: position i holds the item first seen at
// collection index i, or nil when nothing usable was observed there yet (a
// hole). Merges address slots by position and never renumber them; holes are
// filtered out only when items are exposed (see Compact).
//
// Merges never mutate their input: changed items are copied.
type Reconciler struct {
	// InitialVersion is assigned to items created by MergeDelta.
	InitialVersion int
}

// MergeDelta applies the fragments extracted from one delta:
//   - name and content both non-empty: create the item (status processing) or
//     overwrite only its name and content;
//   - name only, no item yet: create a placeholder with empty content;
//   - anything else: no-op for that position.
//
// Content is never replaced by an empty value, nor by a strict prefix of
// itself, so it only grows until an authoritative Finish.
func (r Reconciler) MergeDelta(prev []*Item, frags []ItemFragment) []*Item {
	next := make([]*Item, len(prev))
	copy(next, prev)
	for _, f := range frags {
		if !f.Valid || f.Index < 0 {
			continue
		}
		for len(next) <= f.Index {
			next = append(next, nil)
		}
		cur := next[f.Index]
		switch {
		case f.Name != "" && f.Content != "":
			if cur == nil {
				next[f.Index] = r.newItem(f, f.Content)
				continue
			}
			it := *cur
			it.Name = f.Name
			if !isStalePrefix(cur.Content, f.Content) {
				it.Content = f.Content
			}
			adoptID(&it, f)
			next[f.Index] = &it
		case f.Name != "" && cur == nil:
			next[f.Index] = r.newItem(f, "")
		case cur != nil && f.ID != "" && cur.ID == "":
			it := *cur
			adoptID(&it, f)
			next[f.Index] = &it
		}
	}
	return next
}

// MergeFinish rebuilds the list from the authoritative final fragments. The
// result has exactly len(final) slots in final order. Name and content come
// from final; ID, Version, Error and Status are carried forward from the
// in-progress item at the same position, Status defaulting to processing.
// In-progress items beyond the final length are discarded.
func (r Reconciler) MergeFinish(prev []*Item, final []ItemFragment) []*Item {
	next := make([]*Item, len(final))
	for i, f := range final {
		if !f.Valid {
			continue
		}
		it := Item{
			Index:   i,
			Name:    f.Name,
			Content: f.Content,
			Status:  StatusProcessing,
			ID:      f.ID,
		}
		if i < len(prev) && prev[i] != nil {
			p := prev[i]
			if p.Status != "" {
				it.Status = p.Status
			}
			if p.ID != "" {
				it.ID = p.ID
			}
			it.Version = p.Version
			it.Error = p.Error
		}
		next[i] = &it
	}
	return next
}

func (r Reconciler) newItem(f ItemFragment, content string) *Item {
	return &Item{
		Index:   f.Index,
		Name:    f.Name,
		Content: content,
		Status:  StatusProcessing,
		ID:      f.ID,
		Version: r.InitialVersion,
	}
}

func adoptID(it *Item, f ItemFragment) {
	if it.ID == "" && f.ID != "" {
		it.ID = f.ID
	}
}

// isStalePrefix reports whether incoming is a strict prefix of current, i.e.
// a replay of content that was already observed.
func isStalePrefix(current, incoming string) bool {
	return len(incoming) < len(current) && strings.HasPrefix(current, incoming)
}

// MergeDelta merges with a zero Reconciler.
func MergeDelta(prev []*Item, frags []ItemFragment) []*Item {
	return Reconciler{}.MergeDelta(prev, frags)
}

// MergeFinish merges with a zero Reconciler.
func MergeFinish(prev []*Item, final []ItemFragment) []*Item {
	return Reconciler{}.MergeFinish(prev, final)
}

// Compact returns copies of the non-nil items in slot order.
func Compact(slots []*Item) []Item {
	items := make([]Item, 0, len(slots))
	for _, it := range slots {
		if it != nil {
			items = append(items, *it)
		}
	}
	return items
}
