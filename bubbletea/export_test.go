package bubbletea

// Sanitize exports sanitize for testing.
func Sanitize(s string) string { return sanitize(s) }

// Tail exports tail for testing.
func Tail(s string, maxLines int) (string, int) { return tail(s, maxLines) }

// TruncateWidth exports truncateWidth for testing.
func TruncateWidth(s string, width int) string { return truncateWidth(s, width) }

// Preview exports the rendered preview of the selected item for testing.
func Preview(m Model) string { return m.preview() }
