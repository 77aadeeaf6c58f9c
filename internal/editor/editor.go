// Package editor is a small interactive terminal line editor that hosts the typo-fix pipeline.
//
// The document is a surface.Buffer. Fixes run in a bubbletea command goroutine; buffer changes and notices are delivered back to the program through a channel so
// highlights animate while the fix is in flight. Structural edits (splitting or joining lines) and edits to the line being fixed are refused until the run ends.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/quicktypofix/quicktypofix/internal/config"
	"github.com/quicktypofix/quicktypofix/internal/correction"
	"github.com/quicktypofix/quicktypofix/internal/notify"
	"github.com/quicktypofix/quicktypofix/internal/session"
	"github.com/quicktypofix/quicktypofix/internal/simplelogger"
	"github.com/quicktypofix/quicktypofix/internal/surface"
	"github.com/quicktypofix/quicktypofix/internal/termsurface"
	"github.com/quicktypofix/quicktypofix/internal/typofix"
)

const (
	cursorStyleName = "cursor"
	cursorColor     = "#5f5fd7"
	eventBuffer     = 64
)

// Options configure a Model.
type Options struct {
	// Path is where ctrl+s saves. Empty means the document cannot be saved.
	Path string
	Text string

	Session    *session.Session // a new active session if nil
	LoadConfig func() (config.Config, error)
	NewService func(cfg config.Config) correction.Service

	// Profile overrides the detected color profile.
	Profile *termenv.Profile
}

// Model is the bubbletea model of the editor.
type Model struct {
	path   string
	buf    *surface.Buffer
	term   *termsurface.Surface
	sess   *session.Session
	fixer  *typofix.Fixer
	ctx    context.Context
	cancel context.CancelFunc
	events chan tea.Msg

	keys   keyMap
	help   help.Model
	status lipgloss.Style
	labels map[notify.Level]lipgloss.Style

	row, col      int
	top           int
	width, height int
	modified      bool

	// fixingLine is the line of the in-flight fix, or -1.
	fixingLine int
	notice     *notify.Notice
}

type redrawMsg struct{}

type noticeMsg notify.Notice

type fixDoneMsg struct {
	line    int
	outcome typofix.Outcome
}

// New returns a Model editing opts.Text.
func New(opts Options) *Model {
	profile := lipgloss.ColorProfile()
	if opts.Profile != nil {
		profile = *opts.Profile
	}
	sess := opts.Session
	if sess == nil {
		sess = session.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		path:       opts.Path,
		buf:        surface.NewBuffer(surfaceID(opts.Path), opts.Text),
		sess:       sess,
		ctx:        ctx,
		cancel:     cancel,
		events:     make(chan tea.Msg, eventBuffer),
		keys:       defaultKeyMap(),
		help:       help.New(),
		fixingLine: -1,
	}
	m.term = termsurface.New(m.buf, io.Discard, termsurface.Options{Mode: termsurface.ModeColor, Profile: &profile})

	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(profile)
	m.status = r.NewStyle().Reverse(true)
	m.labels = map[notify.Level]lipgloss.Style{
		notify.LevelInfo:  r.NewStyle().Foreground(lipgloss.Color("6")),
		notify.LevelWarn:  r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		notify.LevelError: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}

	m.fixer = &typofix.Fixer{
		Session:    sess,
		Notifier:   notify.Func(m.post),
		LoadConfig: opts.LoadConfig,
		NewService: opts.NewService,
	}
	m.buf.OnChange(func(surface.LineView) { m.send(redrawMsg{}) })
	return m
}

func surfaceID(path string) string {
	if path == "" {
		return "untitled"
	}
	return path
}

// send delivers msg to the program without blocking; redraws are coalesced when the channel is full.
func (m *Model) send(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

func (m *Model) post(level notify.Level, msg string) {
	simplelogger.Log("editor: %s: %s", level, msg)
	m.send(noticeMsg{Level: level, Msg: msg})
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Text returns the document text.
func (m *Model) Text() string {
	return m.buf.Text()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.scroll()
		return m, nil
	case redrawMsg:
		return m, m.waitForEvent()
	case noticeMsg:
		n := notify.Notice(msg)
		m.notice = &n
		return m, m.waitForEvent()
	case fixDoneMsg:
		if !errors.Is(msg.outcome.Err, typofix.ErrInProgress) && m.fixingLine == msg.line {
			m.fixingLine = -1
		}
		if msg.outcome.State == typofix.StateDone {
			m.modified = true
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.fixer.Highlights().CancelAll()
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Fix):
		return m, m.startFix()
	case key.Matches(msg, m.keys.Toggle):
		if m.sess.Toggle() {
			m.post(notify.LevelInfo, "QuickTypoFix is now active!")
		} else {
			m.post(notify.LevelInfo, "QuickTypoFix is now inactive")
		}
	case key.Matches(msg, m.keys.Save):
		m.save()
	case key.Matches(msg, m.keys.Up):
		m.moveTo(m.row-1, m.col)
	case key.Matches(msg, m.keys.Down):
		m.moveTo(m.row+1, m.col)
	case key.Matches(msg, m.keys.Left):
		m.left()
	case key.Matches(msg, m.keys.Right):
		m.right()
	case key.Matches(msg, m.keys.Home):
		m.col = 0
	case key.Matches(msg, m.keys.End):
		m.col = m.lineLen(m.row)
	case key.Matches(msg, m.keys.Enter):
		m.split()
	case key.Matches(msg, m.keys.Backspace):
		m.backspace()
	case msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace:
		m.insert(string(msg.Runes))
	}
	m.scroll()
	return m, nil
}

func (m *Model) startFix() tea.Cmd {
	line := m.row
	if m.fixingLine < 0 {
		m.fixingLine = line
	}
	return func() tea.Msg {
		return fixDoneMsg{line: line, outcome: m.fixer.Run(m.ctx, m.buf, line)}
	}
}

func (m *Model) lineLen(row int) int {
	text, err := m.buf.LineText(row)
	if err != nil {
		return 0
	}
	return utf8.RuneCountInString(text)
}

func (m *Model) moveTo(row, col int) {
	row = max(0, min(row, m.buf.LineCount()-1))
	m.row = row
	m.col = max(0, min(col, m.lineLen(row)))
}

func (m *Model) left() {
	switch {
	case m.col > 0:
		m.col--
	case m.row > 0:
		m.row--
		m.col = m.lineLen(m.row)
	}
}

func (m *Model) right() {
	switch {
	case m.col < m.lineLen(m.row):
		m.col++
	case m.row < m.buf.LineCount()-1:
		m.row++
		m.col = 0
	}
}

// refuse reports (and explains) whether an edit must wait for the in-flight fix.
func (m *Model) refuse(structural bool) bool {
	if m.fixingLine < 0 || (!structural && m.fixingLine != m.row) {
		return false
	}
	m.post(notify.LevelInfo, "A typo correction is already in progress")
	return true
}

func (m *Model) insert(text string) {
	if text == "" || m.refuse(false) {
		return
	}
	if err := m.buf.Replace(m.ctx, m.row, m.col, m.col, text); err != nil {
		m.post(notify.LevelError, err.Error())
		return
	}
	m.col += utf8.RuneCountInString(text)
	m.modified = true
}

func (m *Model) backspace() {
	if m.col > 0 {
		if m.refuse(false) {
			return
		}
		if err := m.buf.Replace(m.ctx, m.row, m.col-1, m.col, ""); err != nil {
			m.post(notify.LevelError, err.Error())
			return
		}
		m.col--
		m.modified = true
		return
	}
	if m.row == 0 || m.refuse(true) {
		return
	}

	// Join with the previous line.
	m.fixer.Highlights().CancelAll()
	cur, _ := m.buf.LineText(m.row)
	prevLen := m.lineLen(m.row - 1)
	if err := m.buf.Replace(m.ctx, m.row-1, prevLen, prevLen, cur); err != nil {
		m.post(notify.LevelError, err.Error())
		return
	}
	if err := m.buf.DeleteLine(m.row); err != nil {
		m.post(notify.LevelError, err.Error())
		return
	}
	m.row--
	m.col = prevLen
	m.modified = true
}

func (m *Model) split() {
	if m.refuse(true) {
		return
	}
	m.fixer.Highlights().CancelAll()
	text, _ := m.buf.LineText(m.row)
	runes := []rune(text)
	tail := string(runes[m.col:])
	if err := m.buf.Replace(m.ctx, m.row, m.col, len(runes), ""); err != nil {
		m.post(notify.LevelError, err.Error())
		return
	}
	if err := m.buf.InsertLine(m.row+1, tail); err != nil {
		m.post(notify.LevelError, err.Error())
		return
	}
	m.row++
	m.col = 0
	m.modified = true
}

func (m *Model) save() {
	// The line may hold the merged text until the fix finishes.
	if m.refuse(true) {
		return
	}
	if m.path == "" {
		m.post(notify.LevelWarn, "No file name; nothing was saved")
		return
	}
	if err := os.WriteFile(m.path, []byte(m.buf.Text()), 0o644); err != nil {
		m.post(notify.LevelError, fmt.Sprintf("Failed to save: %v", err))
		return
	}
	m.modified = false
	m.post(notify.LevelInfo, "Saved "+m.path)
}

// textRows is the number of rows available for document lines.
func (m *Model) textRows() int {
	rows := m.height - 2
	if m.help.ShowAll {
		rows -= len(m.keys.FullHelp()[0]) - 1
	}
	return max(rows, 1)
}

func (m *Model) scroll() {
	if m.row < m.top {
		m.top = m.row
	}
	if rows := m.textRows(); m.row >= m.top+rows {
		m.top = m.row - rows + 1
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	rows := m.textRows()
	for i := m.top; i < m.buf.LineCount() && i < m.top+rows; i++ {
		v := m.buf.View(i)
		if i == m.row {
			v = withCursor(v, m.col)
		}
		b.WriteString(m.term.Render(v))
	}
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// withCursor returns v with a one-column cursor decoration drawn on top at col.
func withCursor(v surface.LineView, col int) surface.LineView {
	if col >= utf8.RuneCountInString(v.Text) {
		v.Text += " "
	}
	decos := append([]surface.AppliedDecoration(nil), v.Decorations...)
	v.Decorations = append(decos, surface.AppliedDecoration{
		Style: surface.Style{Name: cursorStyleName, Background: cursorColor},
		Spans: []surface.Span{{Start: col, End: col + 1}},
	})
	return v
}

func (m *Model) statusLine() string {
	state := "active"
	if !m.sess.IsActive() {
		state = "inactive"
	}
	mod := ""
	if m.modified {
		mod = " [+]"
	}
	left := fmt.Sprintf(" %s%s  Ln %d, Col %d  [%s]", surfaceID(m.path), mod, m.row+1, m.col+1, state)
	if m.fixingLine >= 0 {
		left += "  fixing…"
	}
	out := m.status.Render(left)
	if m.notice != nil {
		label := m.notice.Level.String() + ":"
		if st, ok := m.labels[m.notice.Level]; ok {
			label = st.Render(label)
		}
		out += " " + label + " " + m.notice.Msg
	}
	return out
}

// Run runs the editor on the terminal until the user quits.
func Run(ctx context.Context, opts Options) error {
	m := New(opts)
	defer m.cancel()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
