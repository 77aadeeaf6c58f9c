// Package session holds the correction activation state and the per-surface in-flight guard.
package session

import (
	"sync"
	"sync/atomic"
)

// Session gates whether corrections run. A new Session is active. Pass it by reference to whatever runs corrections; there is no package-level session.
type Session struct {
	inactive atomic.Bool // zero value means active
}

// New returns an active Session.
func New() *Session {
	return &Session{}
}

// IsActive reports whether corrections may run.
func (s *Session) IsActive() bool {
	return !s.inactive.Load()
}

// Activate enables corrections.
func (s *Session) Activate() {
	s.inactive.Store(false)
}

// Deactivate disables corrections.
func (s *Session) Deactivate() {
	s.inactive.Store(true)
}

// Toggle flips the state and returns the new IsActive value.
func (s *Session) Toggle() bool {
	for {
		old := s.inactive.Load()
		if s.inactive.CompareAndSwap(old, !old) {
			return old
		}
	}
}

// Guard allows at most one in-flight correction per surface ID. The zero value is ready to use.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// TryAcquire marks id as busy. It returns a release func and true, or nil and false if id is already busy. The release func is idempotent.
func (g *Guard) TryAcquire(id string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight == nil {
		g.inFlight = map[string]struct{}{}
	}
	if _, busy := g.inFlight[id]; busy {
		return nil, false
	}
	g.inFlight[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			delete(g.inFlight, id)
		})
	}, true
}

// Busy reports whether id has an in-flight correction.
func (g *Guard) Busy(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[id]
	return busy
}
