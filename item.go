package reconcile

// Status is the lifecycle status of an Item.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Item is one addressable unit of the streamed collection, e.g. one file.
//
// Index is the item's position in the collection and is its identity while
// streaming. ID, Version and Error are optional; their zero values mean
// absent. Once populated they are never cleared by a later partial fragment.
type Item struct {
	Index   int
	Name    string
	Content string
	Status  Status
	ID      string
	Version int
	Error   string
}

// HasContent reports whether the item carries usable content.
func (it Item) HasContent() bool { return it.Content != "" }

// ItemFragment is the raw record of fields observed at one collection
// position during a single merge. It is never stored.
type ItemFragment struct {
	Index      int
	Name       string
	Content    string
	ID         string
	HasName    bool
	HasContent bool
	// Valid is false when the element at this position is not an object.
	Valid bool
}
