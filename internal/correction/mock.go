package correction

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Mock is a Service with canned replies. It is safe for concurrent use.
type Mock struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
	gate      chan struct{}
	calls     []string
}

var _ Service = (*Mock)(nil)

// NewMock returns a Mock that replies with the value for the first key, in sorted order, contained in the line (case-insensitive). Replies are passed through Extract, so they may be raw
// model output with delimiters. A line with no matching key is returned unchanged.
func NewMock(responses map[string]string) *Mock {
	return &Mock{responses: responses}
}

// NewFailingMock returns a Mock whose every call fails with err.
func NewFailingMock(err error) *Mock {
	return &Mock{err: err}
}

// Hold makes subsequent calls block until the returned release func is called or their context ends.
func (m *Mock) Hold() (release func()) {
	gate := make(chan struct{})
	var once sync.Once
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()
	return func() { once.Do(func() { close(gate) }) }
}

// Calls returns the lines passed to Correct, in order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Correct implements Service.
func (m *Mock) Correct(ctx context.Context, line string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, line)
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", transportError(ctx.Err())
		}
	}

	if m.err != nil {
		return "", m.err
	}
	if err := ctx.Err(); err != nil {
		return "", transportError(err)
	}

	lower := strings.ToLower(line)
	for _, k := range slices.Sorted(maps.Keys(m.responses)) {
		if strings.Contains(lower, strings.ToLower(k)) {
			fixed := strings.Trim(Extract(m.responses[k]), "\r\n")
			if strings.ContainsAny(fixed, "\r\n") {
				return "", malformedf("corrected text spans multiple lines: %q", fixed)
			}
			return fixed, nil
		}
	}
	return line, nil
}

// String is used in logs.
func (m *Mock) String() string {
	return fmt.Sprintf("mock(%d responses)", len(m.responses))
}
