package reconcile

import (
	"fmt"
	"strings"
)

// Schema names where the item collection lives inside the streamed document
// and which keys of each element carry the item fields.
type Schema struct {
	// CollectionPath is the dotted path of the item array, e.g. "files".
	CollectionPath string
	NameKey        string
	ContentKey     string
	// IDKey is optional. When set and a fragment carries a string under this
	// key, the item adopts it as its ID unless it already has one.
	IDKey string
	// Kind labels every Progress record, e.g. "metric" or "dashboard".
	Kind string
	// InitialVersion is assigned to items created while streaming.
	// Zero leaves Version absent.
	InitialVersion int
}

// DefaultSchema returns the schema of the file-generation tool payload:
//
//	{ "files": [ { "name": string, "yml_content": string }, ... ] }
func DefaultSchema() Schema {
	return Schema{
		CollectionPath: "files",
		NameKey:        "name",
		ContentKey:     "yml_content",
		IDKey:          "id",
		Kind:           "file",
	}
}

// Validate checks that the schema can address items.
func (s Schema) Validate() error {
	if s.CollectionPath == "" {
		return fmt.Errorf("collection path is required: %w", ErrValidation)
	}
	for _, seg := range strings.Split(s.CollectionPath, ".") {
		if seg == "" {
			return fmt.Errorf("collection path %q has an empty segment: %w", s.CollectionPath, ErrValidation)
		}
	}
	if s.NameKey == "" || s.ContentKey == "" {
		return fmt.Errorf("name and content keys are required: %w", ErrValidation)
	}
	if s.NameKey == s.ContentKey {
		return fmt.Errorf("name and content keys must differ, both are %q: %w", s.NameKey, ErrValidation)
	}
	if s.InitialVersion < 0 {
		return fmt.Errorf("initial version must be non-negative, got %d: %w", s.InitialVersion, ErrValidation)
	}
	return nil
}
