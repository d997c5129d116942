package reconcile

// Parser turns accumulated, possibly truncated text into a best-effort value
// tree. Parse must never panic or fail: malformed input yields a result with
// a nil Value, meaning no new structured information this time.
type Parser interface {
	Parse(text string) ParseResult
}

// ParseResult is the outcome of one Parse call.
type ParseResult struct {
	// Value is the best-effort tree built from maps, slices, strings,
	// float64, bool and nil. Nil when nothing could be recovered.
	Value any
	// Complete reports whether the text was a valid JSON document as-is.
	Complete bool
	// Extracted maps dotted paths ("files.0.name") to the values recovered
	// at those paths. It may be populated even when Value is nil.
	Extracted map[string]any
	// Open is the dotted path of a string value that was still open at the
	// end of the text, or "" when none was.
	Open string
}

// Validator checks an authoritative payload against the expected shape.
// A non-nil error means the payload violates the producer contract.
type Validator interface {
	Validate(payload []byte) error
}
