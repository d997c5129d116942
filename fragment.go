package reconcile

// Fragment is a sealed interface representing one unit of incremental input.
// A producer may deliver raw text that grows into a JSON document, or objects
// that were already decoded, and may switch between the two mid-stream.
// The unexported marker method prevents external implementations.
type Fragment interface {
	fragment()
}

// Text is a chunk of raw text. The chunk is appended to the session's
// accumulated text, which is then re-parsed as a whole.
type Text struct {
	Chunk string
}

func (Text) fragment() {}

// Decoded is a fully-typed partial object of the target shape. It replaces
// the session's parsed snapshot and leaves the accumulated text untouched.
type Decoded struct {
	Value map[string]any
}

func (Decoded) fragment() {}

// Interface compliance checks.
var (
	_ Fragment = Text{}
	_ Fragment = Decoded{}
)
