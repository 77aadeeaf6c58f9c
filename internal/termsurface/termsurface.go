// Package termsurface is a host surface that prints one frame per visible change of a line to a terminal (or any io.Writer).
//
// It wraps a surface.Buffer: edits and decorations go to the buffer, and every change to the watched line is rendered and written. With a color-capable writer,
// decorations are painted as lipgloss backgrounds; otherwise a marker line is printed beneath the text, aligned by display column.
package termsurface

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/quicktypofix/quicktypofix/internal/surface"
)

// Mode selects how decorations are rendered.
type Mode int

const (
	ModeAuto    Mode = iota // ModeColor if the writer supports color, else ModeMarkers
	ModeColor               // lipgloss backgrounds
	ModeMarkers             // plain text plus a marker line
)

// DefaultMarkers maps decoration style names to marker runes.
var DefaultMarkers = map[string]rune{
	"added":   '+',
	"removed": '-',
}

const fallbackMarker = '^'

// Options configure a Surface.
type Options struct {
	Mode Mode

	// Profile, if set, overrides color-profile detection on the writer (ex: termenv.TrueColor in tests).
	Profile *termenv.Profile

	Markers map[string]rune // DefaultMarkers if nil
	Width   *WidthOptions
}

// Surface is a Buffer that renders a watched line to a writer on every change.
type Surface struct {
	*surface.Buffer

	w        io.Writer
	renderer *lipgloss.Renderer
	mode     Mode
	markers  map[string]rune
	width    *WidthOptions

	mu     sync.Mutex
	watch  int
	last   string
	frames int
}

// New returns a Surface over buf that writes frames for line changes to w. Call Watch to choose the line (no line is watched initially).
func New(buf *surface.Buffer, w io.Writer, opts Options) *Surface {
	r := lipgloss.NewRenderer(w)
	if opts.Profile != nil {
		r.SetColorProfile(*opts.Profile)
	}

	mode := opts.Mode
	if mode == ModeAuto {
		mode = ModeColor
		if r.ColorProfile() == termenv.Ascii {
			mode = ModeMarkers
		}
	}
	markers := opts.Markers
	if markers == nil {
		markers = DefaultMarkers
	}

	s := &Surface{Buffer: buf, w: w, renderer: r, mode: mode, markers: markers, width: opts.Width, watch: -1}
	buf.OnChange(s.onChange)
	return s
}

// Mode returns the resolved rendering mode.
func (s *Surface) Mode() Mode {
	return s.mode
}

// Watch sets the line whose changes are printed and prints its current state as the first frame.
func (s *Surface) Watch(line int) {
	s.mu.Lock()
	s.watch = line
	s.last = ""
	s.mu.Unlock()
	s.onChange(s.View(line))
}

// Frames returns the number of frames written.
func (s *Surface) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Surface) onChange(v surface.LineView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Line != s.watch {
		return
	}
	frame := s.Render(v)
	if frame == s.last {
		return
	}
	s.last = frame
	s.frames++
	io.WriteString(s.w, frame)
}

// Render returns the frame for v: a gutter with the 1-based line number, the text, and (in ModeMarkers, when anything is decorated) a marker line. The frame ends with
// a newline.
func (s *Surface) Render(v surface.LineView) string {
	gutter := fmt.Sprintf("%4d | ", v.Line+1)
	if s.mode == ModeColor {
		return gutter + s.paint(v) + "\n"
	}

	var b strings.Builder
	b.WriteString(gutter)
	b.WriteString(v.Text)
	b.WriteString("\n")
	if marks := markerLine(v.Text, s.width, s.markerAt(v)); marks != "" {
		b.WriteString(strings.Repeat(" ", len(gutter)))
		b.WriteString(marks)
		b.WriteString("\n")
	}
	return b.String()
}

// topDecoration returns, per rune offset, the index of the last decoration covering it, or -1. Later decorations are drawn over earlier ones.
func topDecoration(v surface.LineView, n int) []int {
	top := make([]int, n)
	for i := range top {
		top[i] = -1
	}
	for di, d := range v.Decorations {
		for _, sp := range d.Spans {
			for r := max(sp.Start, 0); r < sp.End && r < n; r++ {
				top[r] = di
			}
		}
	}
	return top
}

func (s *Surface) markerAt(v surface.LineView) func(int) rune {
	runes := []rune(v.Text)
	top := topDecoration(v, len(runes))
	return func(r int) rune {
		if r < 0 || r >= len(top) || top[r] < 0 {
			return 0
		}
		if m, ok := s.markers[v.Decorations[top[r]].Style.Name]; ok {
			return m
		}
		return fallbackMarker
	}
}

// paint renders the text with each decorated run painted in its style's background.
func (s *Surface) paint(v surface.LineView) string {
	runes := []rune(v.Text)
	top := topDecoration(v, len(runes))

	var b strings.Builder
	start := 0
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) && top[i] == top[start] {
			continue
		}
		seg := string(runes[start:i])
		if di := top[start]; di >= 0 && v.Decorations[di].Style.Background != "" {
			seg = s.renderer.NewStyle().Background(lipgloss.Color(v.Decorations[di].Style.Background)).Render(seg)
		}
		b.WriteString(seg)
		start = i
	}
	return b.String()
}
