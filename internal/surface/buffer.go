package surface

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Edit records one committed Replace call on a Buffer.
type Edit struct {
	Line  int
	Start int
	End   int
	Text  string
}

// DecorationEvent records one Set or Dispose call on a Buffer decoration.
type DecorationEvent struct {
	Style    Style
	Line     int
	Spans    []Span // nil for a clear
	Disposed bool
}

// Buffer is an in-memory Surface holding lines of text. The zero value is not usable; use NewBuffer.
//
// Observers registered with OnChange are called (outside the lock) after every committed edit and every decoration change, with a snapshot of the line and its
// active decorations. Hosts use this to re-render.
type Buffer struct {
	id string

	mu          sync.Mutex
	lines       []string // without line endings
	newline     string   // "\r\n" if the text had any CRLF line ending, else "\n"
	edits       []Edit
	events      []DecorationEvent
	active      map[*bufferDecoration]struct{}
	observers   []func(LineView)
	nextDecoSeq int
}

// LineView is a snapshot of one line with the decorations currently applied to it.
type LineView struct {
	Line        int
	Text        string
	Decorations []AppliedDecoration
}

// AppliedDecoration is a decoration's style and spans on a line.
type AppliedDecoration struct {
	Style Style
	Spans []Span
}

// NewBuffer returns a Buffer identified by id containing text split on "\n". If text has any "\r\n" line ending, carriage returns are stripped from the lines and Text
// joins them with "\r\n".
func NewBuffer(id string, text string) *Buffer {
	b := &Buffer{
		id:      id,
		lines:   strings.Split(text, "\n"),
		newline: "\n",
		active:  map[*bufferDecoration]struct{}{},
	}
	if strings.Contains(text, "\r\n") {
		b.newline = "\r\n"
		for i, l := range b.lines {
			b.lines[i] = strings.TrimSuffix(l, "\r")
		}
	}
	return b
}

// ID implements Surface.
func (b *Buffer) ID() string {
	return b.id
}

// LineText implements Surface.
func (b *Buffer) LineText(line int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if line < 0 || line >= len(b.lines) {
		return "", fmt.Errorf("%w: %d", ErrNoLine, line)
	}
	return b.lines[line], nil
}

// LineCount returns the number of lines.
func (b *Buffer) LineCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// Text returns all lines joined with the buffer's line ending.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, b.newline)
}

// Replace implements Surface. Columns outside the line are an error; text must not contain a newline.
func (b *Buffer) Replace(ctx context.Context, line int, start int, end int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(text, "\r\n") {
		return fmt.Errorf("surface: replacement text for line %d contains a newline", line)
	}

	b.mu.Lock()
	if line < 0 || line >= len(b.lines) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoLine, line)
	}
	runes := []rune(b.lines[line])
	if start < 0 || end < start || end > len(runes) {
		b.mu.Unlock()
		return fmt.Errorf("surface: replace [%d, %d) out of bounds for line %d of length %d", start, end, line, len(runes))
	}
	b.lines[line] = string(runes[:start]) + text + string(runes[end:])
	b.edits = append(b.edits, Edit{Line: line, Start: start, End: end, Text: text})
	view := b.viewLocked(line)
	observers := b.observers
	b.mu.Unlock()

	notifyObservers(observers, view)
	return nil
}

// InsertLine inserts a new line with text before line at (at == LineCount appends). Decorations on later lines move down with their text.
func (b *Buffer) InsertLine(at int, text string) error {
	if strings.ContainsAny(text, "\r\n") {
		return fmt.Errorf("surface: inserted line %d contains a newline", at)
	}
	b.mu.Lock()
	if at < 0 || at > len(b.lines) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoLine, at)
	}
	b.lines = append(b.lines, "")
	copy(b.lines[at+1:], b.lines[at:])
	b.lines[at] = text
	for d := range b.active {
		if d.line >= at {
			d.line++
		}
	}
	views := b.viewsFromLocked(at)
	observers := b.observers
	b.mu.Unlock()

	for _, v := range views {
		notifyObservers(observers, v)
	}
	return nil
}

// DeleteLine removes line at. The last remaining line cannot be deleted; it can only be emptied. Decorations on the deleted line are cleared.
func (b *Buffer) DeleteLine(at int) error {
	b.mu.Lock()
	if at < 0 || at >= len(b.lines) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoLine, at)
	}
	if len(b.lines) == 1 {
		b.mu.Unlock()
		return fmt.Errorf("surface: cannot delete the only line")
	}
	b.lines = append(b.lines[:at], b.lines[at+1:]...)
	for d := range b.active {
		switch {
		case d.line == at:
			d.spans = nil
		case d.line > at:
			d.line--
		}
	}
	views := b.viewsFromLocked(at)
	observers := b.observers
	b.mu.Unlock()

	for _, v := range views {
		notifyObservers(observers, v)
	}
	return nil
}

func (b *Buffer) viewsFromLocked(from int) []LineView {
	var views []LineView
	for i := from; i < len(b.lines); i++ {
		views = append(views, b.viewLocked(i))
	}
	return views
}

// NewDecoration implements Surface.
func (b *Buffer) NewDecoration(style Style) (Decoration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextDecoSeq++
	d := &bufferDecoration{buf: b, style: style, line: -1, seq: b.nextDecoSeq}
	b.active[d] = struct{}{}
	return d, nil
}

// OnChange registers fn to be called after every edit and decoration change.
func (b *Buffer) OnChange(fn func(LineView)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

// Edits returns a copy of all committed edits, in order.
func (b *Buffer) Edits() []Edit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Edit(nil), b.edits...)
}

// DecorationEvents returns a copy of all decoration events, in order.
func (b *Buffer) DecorationEvents() []DecorationEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DecorationEvent(nil), b.events...)
}

// ActiveDecorations returns the number of decorations acquired and not yet disposed.
func (b *Buffer) ActiveDecorations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.active)
}

// View returns a snapshot of line with its applied decorations.
func (b *Buffer) View(line int) LineView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked(line)
}

func (b *Buffer) viewLocked(line int) LineView {
	v := LineView{Line: line}
	if line >= 0 && line < len(b.lines) {
		v.Text = b.lines[line]
	}

	// Stable order: by acquisition sequence.
	var decos []*bufferDecoration
	for d := range b.active {
		if d.line == line && len(d.spans) > 0 {
			decos = append(decos, d)
		}
	}
	sort.Slice(decos, func(i, j int) bool { return decos[i].seq < decos[j].seq })
	for _, d := range decos {
		v.Decorations = append(v.Decorations, AppliedDecoration{Style: d.style, Spans: append([]Span(nil), d.spans...)})
	}
	return v
}

func notifyObservers(observers []func(LineView), view LineView) {
	for _, fn := range observers {
		fn(view)
	}
}

type bufferDecoration struct {
	buf      *Buffer
	style    Style
	seq      int
	line     int
	spans    []Span
	disposed bool
}

func (d *bufferDecoration) Set(line int, spans []Span) error {
	b := d.buf
	b.mu.Lock()
	if d.disposed {
		b.mu.Unlock()
		return fmt.Errorf("surface: decoration %q used after dispose", d.style.Name)
	}
	prevLine := d.line
	d.line = line
	d.spans = append([]Span(nil), spans...)
	var recorded []Span
	if len(spans) > 0 {
		recorded = append([]Span(nil), spans...)
	}
	b.events = append(b.events, DecorationEvent{Style: d.style, Line: line, Spans: recorded})
	views := []LineView{b.viewLocked(line)}
	if prevLine >= 0 && prevLine != line {
		views = append(views, b.viewLocked(prevLine))
	}
	observers := b.observers
	b.mu.Unlock()

	for _, v := range views {
		notifyObservers(observers, v)
	}
	return nil
}

func (d *bufferDecoration) Dispose() {
	b := d.buf
	b.mu.Lock()
	if d.disposed {
		b.mu.Unlock()
		return
	}
	d.disposed = true
	delete(b.active, d)
	b.events = append(b.events, DecorationEvent{Style: d.style, Line: d.line, Disposed: true})
	var view *LineView
	if d.line >= 0 && len(d.spans) > 0 {
		v := b.viewLocked(d.line)
		view = &v
	}
	observers := b.observers
	b.mu.Unlock()

	if view != nil {
		notifyObservers(observers, *view)
	}
}
