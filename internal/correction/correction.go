// Package correction asks a remote language model to fix spelling and grammar in a single line of text.
//
// Client talks to an OpenAI-compatible chat-completions endpoint. The model is instructed to wrap its answer in <typoFixed>...</typoFixed>; Extract strips those markers
// and tolerates their absence. Failures are reported as one of ErrCredentialMissing, ErrTransport, or ErrMalformedResponse (test with errors.Is).
package correction

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCredentialMissing means no API key is available.
	ErrCredentialMissing = errors.New("API key has not been set")

	// ErrTransport means the request could not be completed: a network error, a canceled context, or a non-success HTTP status.
	ErrTransport = errors.New("request failed")

	// ErrMalformedResponse means the response lacked the expected fields or had the wrong field types.
	ErrMalformedResponse = errors.New("malformed response")
)

func transportError(err error) error { return fmt.Errorf("%w: %w", ErrTransport, err) }

func malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// Service corrects one line of text.
type Service interface {
	Correct(ctx context.Context, line string) (string, error)
}

// Func adapts a function to a Service.
type Func func(ctx context.Context, line string) (string, error)

// Correct implements Service.
func (f Func) Correct(ctx context.Context, line string) (string, error) { return f(ctx, line) }
