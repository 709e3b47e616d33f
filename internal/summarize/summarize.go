// Package summarize is the boundary to the external text-completion service.
package summarize

import (
	"context"
	"errors"
	"fmt"
)

// Completer sends one prompt and returns the completion text.
// It returns ErrNoText when the service answered without a text payload.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxOutput int) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, maxOutput int) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, maxOutput int) (string, error) {
	return f(ctx, prompt, maxOutput)
}

var (
	// ErrNoText marks a response that carried no text result.
	ErrNoText = errors.New("response has no text")

	// ErrMalformed marks a reply body that could not be decoded.
	ErrMalformed = errors.New("malformed response")

	// ErrNoAPIKey marks a missing credential.
	ErrNoAPIKey = errors.New("no API key")
)

// StatusError is a non-200 reply from the completion service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Code, e.Body)
}
