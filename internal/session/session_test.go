package session

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_DefaultActiveAndToggle(t *testing.T) {
	s := New()
	assert.True(t, s.IsActive())

	s.Deactivate()
	assert.False(t, s.IsActive())
	s.Deactivate()
	assert.False(t, s.IsActive())

	s.Activate()
	assert.True(t, s.IsActive())

	assert.False(t, s.Toggle())
	assert.False(t, s.IsActive())
	assert.True(t, s.Toggle())
	assert.True(t, s.IsActive())

	var zero Session
	assert.True(t, zero.IsActive())
}

func TestGuard_OnePerSurface(t *testing.T) {
	var g Guard

	release, ok := g.TryAcquire("a.txt")
	require.True(t, ok)
	assert.True(t, g.Busy("a.txt"))

	_, ok = g.TryAcquire("a.txt")
	assert.False(t, ok)

	releaseB, ok := g.TryAcquire("b.txt")
	require.True(t, ok)
	releaseB()

	release()
	release()
	assert.False(t, g.Busy("a.txt"))

	release2, ok := g.TryAcquire("a.txt")
	require.True(t, ok)
	release2()
}

func TestGuard_ConcurrentAcquire(t *testing.T) {
	var g Guard
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := g.TryAcquire("doc"); ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
