// Package highlight installs temporary decorations on a surface line and guarantees their removal.
//
// A Scheduler acquires one decoration per Layer, applies it, and arms a timer that releases everything after the dwell duration. Release (clear, then dispose) happens
// exactly once whether triggered by the timer, Cancel, or a canceled Wait.
//
// Two forms are used by the correction pipeline:
//   - Dwell applies the highlight and blocks until it has been shown for the full dwell and cleared (or until ctx is done).
//   - Flash applies the highlight and returns immediately; the returned Handle clears itself later and need not be awaited.
package highlight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quicktypofix/quicktypofix/internal/editscript"
	"github.com/quicktypofix/quicktypofix/internal/simplelogger"
	"github.com/quicktypofix/quicktypofix/internal/surface"
)

// DefaultDwell is the dwell used when a Scheduler has none configured.
const DefaultDwell = time.Second

// ErrCanceled is returned by Wait when the handle was released by Cancel before its dwell elapsed.
var ErrCanceled = errors.New("highlight: canceled")

// Layer is a set of ranges shown in one style.
type Layer struct {
	Style  surface.Style
	Ranges []editscript.Range
}

// Scheduler schedules timed highlights. The zero value uses DefaultDwell.
type Scheduler struct {
	Period time.Duration // how long a highlight stays up when a call passes no dwell of its own

	mu      sync.Mutex
	handles map[*Handle]struct{}
}

// NewScheduler returns a Scheduler with the given dwell (DefaultDwell if dwell <= 0).
func NewScheduler(dwell time.Duration) *Scheduler {
	return &Scheduler{Period: dwell}
}

func (s *Scheduler) dwell() time.Duration {
	if s.Period <= 0 {
		return DefaultDwell
	}
	return s.Period
}

// Show acquires and applies one decoration per layer on line of surf, and arms the release timer. Layers whose ranges are all empty are still acquired (and released),
// but show no spans.
//
// If acquiring or applying any layer fails, everything acquired so far is released and the error is returned.
func (s *Scheduler) Show(surf surface.Surface, line int, layers ...Layer) (*Handle, error) {
	return s.ShowFor(0, surf, line, layers...)
}

// ShowFor is Show with a per-call dwell. A non-positive dwell uses the Scheduler's.
func (s *Scheduler) ShowFor(dwell time.Duration, surf surface.Surface, line int, layers ...Layer) (*Handle, error) {
	if dwell <= 0 {
		dwell = s.dwell()
	}
	h := &Handle{
		surf:  surf,
		line:  line,
		done:  make(chan struct{}),
		sched: s,
	}
	for _, layer := range layers {
		deco, err := surf.NewDecoration(layer.Style)
		if err != nil {
			h.release(false)
			return nil, fmt.Errorf("acquire %q decoration: %w", layer.Style.Name, err)
		}
		h.decos = append(h.decos, deco)
		if err := deco.Set(line, Spans(layer.Ranges)); err != nil {
			h.release(false)
			return nil, fmt.Errorf("apply %q decoration: %w", layer.Style.Name, err)
		}
	}

	s.track(h)
	h.mu.Lock()
	h.timer = time.AfterFunc(dwell, func() { h.release(false) })
	h.mu.Unlock()
	return h, nil
}

// Dwell shows layers and blocks until the dwell has elapsed and the decorations are cleared. If ctx is done first, the highlight is released immediately and ctx.Err()
// is returned.
func (s *Scheduler) Dwell(ctx context.Context, surf surface.Surface, line int, layers ...Layer) error {
	return s.DwellFor(ctx, 0, surf, line, layers...)
}

// DwellFor is Dwell with a per-call dwell.
func (s *Scheduler) DwellFor(ctx context.Context, dwell time.Duration, surf surface.Surface, line int, layers ...Layer) error {
	h, err := s.ShowFor(dwell, surf, line, layers...)
	if err != nil {
		return err
	}
	return h.Wait(ctx)
}

// Flash shows layers and returns without waiting. The highlight clears itself after the dwell.
func (s *Scheduler) Flash(surf surface.Surface, line int, layers ...Layer) (*Handle, error) {
	return s.ShowFor(0, surf, line, layers...)
}

// FlashFor is Flash with a per-call dwell.
func (s *Scheduler) FlashFor(dwell time.Duration, surf surface.Surface, line int, layers ...Layer) (*Handle, error) {
	return s.ShowFor(dwell, surf, line, layers...)
}

// Active returns the number of highlights shown and not yet released.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// CancelAll releases every outstanding highlight (ex: when the host surface closes).
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.handles))
	for h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

func (s *Scheduler) track(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handles == nil {
		s.handles = map[*Handle]struct{}{}
	}
	s.handles[h] = struct{}{}
}

func (s *Scheduler) untrack(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, h)
}

// Spans converts ranges into line-relative spans, dropping empty ranges.
func Spans(ranges []editscript.Range) []surface.Span {
	var spans []surface.Span
	for _, r := range ranges {
		if r.Empty() {
			continue
		}
		spans = append(spans, surface.Span{Start: r.Start, End: r.End})
	}
	return spans
}

// Handle is one shown highlight. It is owned by the Scheduler that created it; callers may only Wait on it or Cancel it.
type Handle struct {
	surf  surface.Surface
	line  int
	decos []surface.Decoration
	sched *Scheduler

	once     sync.Once
	done     chan struct{}
	mu       sync.Mutex
	timer    *time.Timer
	canceled bool
}

// Done is closed once the highlight has been released.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel releases the highlight now. It is safe to call multiple times and after the dwell elapsed.
func (h *Handle) Cancel() {
	h.release(true)
}

// Canceled reports whether the highlight was released by Cancel rather than by its timer. Only meaningful after Done is closed.
func (h *Handle) Canceled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canceled
}

// Wait blocks until the highlight is released. It returns nil if the dwell elapsed, ErrCanceled if Cancel released it, and ctx.Err() if ctx was done first (in which case
// the highlight is released before returning).
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
	case <-ctx.Done():
		h.Cancel()
		<-h.done
		return ctx.Err()
	}
	if h.Canceled() {
		return ErrCanceled
	}
	return nil
}

func (h *Handle) release(canceled bool) {
	h.once.Do(func() {
		h.mu.Lock()
		h.canceled = canceled
		if h.timer != nil {
			h.timer.Stop()
		}
		h.mu.Unlock()

		for _, deco := range h.decos {
			if err := deco.Set(h.line, nil); err != nil {
				simplelogger.Log("highlight: clear line %d of %s: %v", h.line, h.surf.ID(), err)
			}
			deco.Dispose()
		}
		if h.sched != nil {
			h.sched.untrack(h)
		}
		close(h.done)
	})
}
