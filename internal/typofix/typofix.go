// Package typofix runs the correction pipeline for one line of a surface.
//
// A run moves through Idle, Fetching, MergedRender and FinalRender to Done, or ends Aborted. The line is only mutated after the correction service has answered: first
// it is replaced with the merged text (removed and added characters side by side) and both kinds of change are highlighted for the configured dwell, then it is replaced
// with the corrected text and the additions are flashed without blocking the run.
//
// Every failure is reported to the Notifier and returned in the Outcome; Run never panics on bad input or a failed request.
package typofix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/quicktypofix/quicktypofix/internal/config"
	"github.com/quicktypofix/quicktypofix/internal/correction"
	"github.com/quicktypofix/quicktypofix/internal/editscript"
	"github.com/quicktypofix/quicktypofix/internal/highlight"
	"github.com/quicktypofix/quicktypofix/internal/notify"
	"github.com/quicktypofix/quicktypofix/internal/session"
	"github.com/quicktypofix/quicktypofix/internal/simplelogger"
	"github.com/quicktypofix/quicktypofix/internal/surface"
)

var (
	// ErrInputUnavailable means there was nothing to correct: the session is inactive, there is no surface, or the line is empty or not valid UTF-8.
	ErrInputUnavailable = errors.New("input unavailable")

	// ErrInProgress means another run holds the surface.
	ErrInProgress = errors.New("a typo correction is already in progress")

	// ErrLineChanged means the line was edited while the correction request was in flight.
	ErrLineChanged = errors.New("line changed while the correction was in flight")
)

// User-facing notices.
const (
	msgInactive      = "QuickTypoFix is not activated"
	msgNoSurface     = "No editor is active"
	msgNoText        = "No text in the line"
	msgInvalidText   = "The line contains invalid UTF-8 text"
	msgInProgress    = "A typo correction is already in progress"
	msgCorrected     = "Typo corrected"
	msgLineChanged   = "The line changed while the correction was in flight; nothing was modified"
	msgRegisterHint  = `No API key found. Please register one first: run "quicktypofix key register".`
	msgFailedPattern = "Failed to fix typo: %v"
)

// State is a pipeline state.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateMergedRender
	StateFinalRender
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateMergedRender:
		return "merged-render"
	case StateFinalRender:
		return "final-render"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome describes a finished run.
type Outcome struct {
	RunID string

	// State is StateDone or StateAborted.
	State State

	// Path lists every state entered, in order, ending with State.
	Path []State

	// Err is nil iff State is StateDone.
	Err error

	Original  string
	Corrected string
	Script    editscript.Script

	// Flash is the detached additions highlight of a Done run. It clears itself; callers may Cancel it or ignore it.
	Flash *highlight.Handle
}

// Fixer runs the pipeline. Session and Scheduler are shared by all runs of one host; the zero values of the optional fields are usable.
type Fixer struct {
	Session *session.Session

	// Guard serializes runs per surface ID. If nil, a Fixer-owned guard is used.
	Guard *session.Guard

	// Scheduler shows highlights. Each run passes its configured dwell. If nil, a Fixer-owned scheduler is used.
	Scheduler *highlight.Scheduler

	Notifier notify.Sink

	// LoadConfig resolves configuration once per run.
	LoadConfig func() (config.Config, error)

	// NewService builds the correction service for a run's configuration.
	NewService func(cfg config.Config) correction.Service

	// OnState, if set, is called on every state transition (from the run's goroutine).
	OnState func(runID string, state State)

	ownGuard     session.Guard
	ownScheduler highlight.Scheduler
}

func (f *Fixer) guard() *session.Guard {
	if f.Guard != nil {
		return f.Guard
	}
	return &f.ownGuard
}

// Highlights returns the scheduler used for highlights (ex: to CancelAll when the host closes).
func (f *Fixer) Highlights() *highlight.Scheduler {
	if f.Scheduler != nil {
		return f.Scheduler
	}
	return &f.ownScheduler
}

func (f *Fixer) notifier() notify.Sink {
	if f.Notifier == nil {
		return notify.Discard
	}
	return f.Notifier
}

// run is the state of one invocation.
type run struct {
	f     *Fixer
	out   *Outcome
	log   simplelogger.Logger
	notes notify.Sink
}

func (r *run) enter(s State) {
	r.out.Path = append(r.out.Path, s)
	r.out.State = s
	r.log.Log("state=%s", s)
	if r.f.OnState != nil {
		r.f.OnState(r.out.RunID, s)
	}
}

func (r *run) abort(err error) Outcome {
	r.out.Err = err
	r.enter(StateAborted)
	return *r.out
}

// Run corrects line of surf. ctx bounds the request and the merged-text dwell; once the merged text is in the document, the corrected text is committed even if ctx
// ends.
func (f *Fixer) Run(ctx context.Context, surf surface.Surface, line int) Outcome {
	out := &Outcome{RunID: uuid.NewString()}
	r := &run{f: f, out: out, log: simplelogger.WithPrefix("run " + out.RunID[:8]), notes: f.notifier()}
	r.enter(StateIdle)

	if f.Session != nil && !f.Session.IsActive() {
		notify.Infof(r.notes, msgInactive)
		return r.abort(fmt.Errorf("%w: session is inactive", ErrInputUnavailable))
	}
	if surf == nil {
		notify.Infof(r.notes, msgNoSurface)
		return r.abort(fmt.Errorf("%w: no surface", ErrInputUnavailable))
	}

	release, ok := f.guard().TryAcquire(surf.ID())
	if !ok {
		notify.Infof(r.notes, msgInProgress)
		return r.abort(ErrInProgress)
	}
	defer release()

	original, err := surf.LineText(line)
	if err != nil || original == "" {
		notify.Infof(r.notes, msgNoText)
		if err == nil {
			err = errors.New("line is empty")
		}
		return r.abort(fmt.Errorf("%w: %w", ErrInputUnavailable, err))
	}
	// Offsets are counted in runes, which invalid UTF-8 does not have.
	if !utf8.ValidString(original) {
		notify.Infof(r.notes, msgInvalidText)
		return r.abort(fmt.Errorf("%w: line is not valid UTF-8", ErrInputUnavailable))
	}
	out.Original = original

	cfg, err := f.loadConfig()
	if err != nil {
		notify.Errorf(r.notes, msgFailedPattern, err)
		return r.abort(err)
	}
	for _, msg := range cfg.DefaultNotices() {
		notify.Warnf(r.notes, "%s", msg)
	}

	r.enter(StateFetching)
	corrected, err := r.fetch(ctx, cfg, original)
	if err != nil {
		return r.abort(err)
	}
	out.Corrected = corrected

	// The request may take seconds; don't overwrite edits the user made meanwhile.
	if current, err := surf.LineText(line); err != nil || current != original {
		notify.Warnf(r.notes, msgLineChanged)
		return r.abort(ErrLineChanged)
	}

	script := editscript.Compute(original, corrected, cfg.DiffAlgorithm)
	out.Script = script
	r.log.Log("diff algorithm=%s ops=%d changed=%v", cfg.DiffAlgorithm, len(script), script.Changed())

	r.enter(StateMergedRender)
	merged := script.Merged()
	if err := surf.Replace(ctx, line, 0, utf8.RuneCountInString(original), merged); err != nil {
		notify.Errorf(r.notes, msgFailedPattern, err)
		return r.abort(fmt.Errorf("replace with merged text: %w", err))
	}
	dwellErr := f.Highlights().DwellFor(ctx, cfg.Dwell, surf, line,
		highlight.Layer{Style: cfg.AddedStyle, Ranges: script.Ranges(editscript.SpaceMerged, editscript.IsInsert)},
		highlight.Layer{Style: cfg.RemovedStyle, Ranges: script.Ranges(editscript.SpaceMerged, editscript.IsDelete)},
	)

	r.enter(StateFinalRender)
	// The merged text must never be left in the document, so the final edit ignores cancellation.
	finalCtx := ctx
	if dwellErr != nil {
		finalCtx = context.WithoutCancel(ctx)
	}
	if err := surf.Replace(finalCtx, line, 0, utf8.RuneCountInString(merged), corrected); err != nil {
		notify.Errorf(r.notes, msgFailedPattern, err)
		return r.abort(fmt.Errorf("replace with corrected text: %w", err))
	}
	if dwellErr != nil {
		r.log.Log("merged highlight ended early: %v", dwellErr)
		return r.abort(dwellErr)
	}

	flash, err := f.Highlights().FlashFor(cfg.Dwell, surf, line,
		highlight.Layer{Style: cfg.AddedStyle, Ranges: script.Ranges(editscript.SpaceTarget, editscript.IsInsert)},
	)
	if err != nil {
		// The document already holds the corrected text; a missing flash is cosmetic.
		r.log.Log("additions highlight failed: %v", err)
	}
	out.Flash = flash

	r.enter(StateDone)
	notify.Infof(r.notes, msgCorrected)
	return *out
}

func (f *Fixer) loadConfig() (config.Config, error) {
	if f.LoadConfig == nil {
		return config.NewLoader("").Load()
	}
	return f.LoadConfig()
}

// fetch calls the correction service and converts failures into notices.
func (r *run) fetch(ctx context.Context, cfg config.Config, original string) (string, error) {
	if r.f.NewService == nil {
		err := errors.New("no correction service configured")
		notify.Errorf(r.notes, msgFailedPattern, err)
		return "", err
	}
	svc := r.f.NewService(cfg)

	corrected, err := svc.Correct(ctx, original)
	if err != nil {
		r.log.Log("correction failed: %v", err)
		notify.Errorf(r.notes, msgFailedPattern, err)
		if errors.Is(err, correction.ErrCredentialMissing) {
			notify.Warnf(r.notes, msgRegisterHint)
		}
		return "", err
	}
	if strings.ContainsAny(corrected, "\r\n") {
		err := fmt.Errorf("%w: corrected text spans multiple lines", correction.ErrMalformedResponse)
		notify.Errorf(r.notes, msgFailedPattern, err)
		return "", err
	}
	if !utf8.ValidString(corrected) {
		err := fmt.Errorf("%w: corrected text is not valid UTF-8", correction.ErrMalformedResponse)
		notify.Errorf(r.notes, msgFailedPattern, err)
		return "", err
	}
	return corrected, nil
}
