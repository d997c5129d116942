package reconcile

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so renderers
// automatically match any color scheme. A negative index means no color.
type Theme struct {
	Processing int // Items still streaming
	Completed  int // Items promoted to completed
	Failed     int // Failed items and sink errors
	Muted      int // Status bar, placeholders, counters
	CodeBg     int // Content preview background
	Accent     int // Headings, session ids
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		Processing: 3,
		Completed:  2,
		Failed:     1,
		Muted:      8,
		CodeBg:     0,
		Accent:     5,
	}
}

// StatusColor returns the theme color for an item status.
func (t Theme) StatusColor(s Status) int {
	switch s {
	case StatusCompleted:
		return t.Completed
	case StatusFailed:
		return t.Failed
	default:
		return t.Processing
	}
}
