// Package notify delivers user-visible informational, warning, and error messages. Delivery is fire-and-forget: sinks never block the caller on acknowledgment.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Level is the severity of a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Sink receives notices.
type Sink interface {
	Notify(level Level, msg string)
}

// Infof sends an informational notice to s.
func Infof(s Sink, format string, args ...any) {
	s.Notify(LevelInfo, fmt.Sprintf(format, args...))
}

// Warnf sends a warning notice to s.
func Warnf(s Sink, format string, args ...any) {
	s.Notify(LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf sends an error notice to s.
func Errorf(s Sink, format string, args ...any) {
	s.Notify(LevelError, fmt.Sprintf(format, args...))
}

// Func adapts a function to a Sink.
type Func func(level Level, msg string)

// Notify implements Sink.
func (f Func) Notify(level Level, msg string) { f(level, msg) }

// Discard drops every notice.
var Discard Sink = Func(func(Level, string) {})

// Writer prints one line per notice to an io.Writer, with the level label styled by a lipgloss renderer bound to that writer (plain text when the writer is not a
// color terminal).
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	labels map[Level]lipgloss.Style
}

// NewWriter returns a Writer sink printing to w.
func NewWriter(w io.Writer) *Writer {
	r := lipgloss.NewRenderer(w)
	return &Writer{
		w: w,
		labels: map[Level]lipgloss.Style{
			LevelInfo:  r.NewStyle().Foreground(lipgloss.Color("6")),
			LevelWarn:  r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
			LevelError: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
}

// Notify implements Sink.
func (s *Writer) Notify(level Level, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	label := level.String() + ":"
	if st, ok := s.labels[level]; ok {
		label = st.Render(label)
	}
	fmt.Fprintf(s.w, "%s %s\n", label, msg)
}

// Notice is one recorded notice.
type Notice struct {
	Level Level
	Msg   string
}

// Recorder keeps every notice in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify implements Sink.
func (r *Recorder) Notify(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Msg: msg})
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// ByLevel returns the messages recorded at level, in order.
func (r *Recorder) ByLevel(level Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var msgs []string
	for _, n := range r.notices {
		if n.Level == level {
			msgs = append(msgs, n.Msg)
		}
	}
	return msgs
}
