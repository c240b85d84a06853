// Package collab is the boundary to the external text-generation service.
//
// The engine sends a prompt and receives text. Everything that comes back is
// treated as untrusted: responses are parsed defensively and any number the
// service reports about its own work is ignored by callers.
package collab

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when no collaborator is configured.
	ErrUnavailable = errors.New("collaborator unavailable")

	// ErrEmptyResponse is returned when the collaborator answered with no text.
	ErrEmptyResponse = errors.New("collaborator returned an empty response")

	// ErrMalformed is returned when a response cannot be used.
	ErrMalformed = errors.New("malformed collaborator response")
)

// Prompt is a single request.
type Prompt struct {
	System string
	User   string
}

// Client completes prompts.
type Client interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Nop is a Client that is never available.
type Nop struct{}

// Complete always returns ErrUnavailable.
func (Nop) Complete(context.Context, Prompt) (string, error) {
	return "", ErrUnavailable
}
