// Package surface defines the document surface a correction runs against: line text by index, atomic range replacement, and line-relative decorations.
//
// Hosts (the terminal renderer, the interactive editor) implement Surface. Buffer is an in-memory implementation that records every edit and decoration call; it backs
// the one-shot terminal host and the tests.
//
// Columns are rune offsets within a line. Implementations must be safe for concurrent use: highlight release may run on a timer goroutine while a pipeline run is
// issuing edits.
package surface

import (
	"context"
	"errors"
)

// ErrNoLine is returned when a line index is out of range.
var ErrNoLine = errors.New("surface: no such line")

// Style is a visual decoration style. Background is a color string the host understands (normalized to "#rrggbb" by internal/config).
type Style struct {
	Name       string
	Background string
}

// Span is a line-relative, half-open [Start, End) rune column interval.
type Span struct {
	Start int
	End   int
}

// Surface is an editor document the correction pipeline reads and mutates.
type Surface interface {
	// ID identifies the surface (ex: a file path). Used to serialize corrections per surface.
	ID() string

	// LineText returns the text of line (0-based), without its line terminator.
	LineText(line int) (string, error)

	// Replace atomically replaces columns [start, end) of line with text. It returns once the host has committed the edit.
	Replace(ctx context.Context, line int, start int, end int, text string) error

	// NewDecoration acquires a decoration resource for style. The caller owns it until Dispose.
	NewDecoration(style Style) (Decoration, error)
}

// Decoration is one acquired decoration resource (one style).
type Decoration interface {
	// Set replaces the spans this decoration shows on line. Passing no spans clears it.
	Set(line int, spans []Span) error

	// Dispose releases the resource. The decoration must not be used afterwards.
	Dispose()
}
