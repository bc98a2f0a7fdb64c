// Package answer synthesizes grounded answers from retrieved contexts with a language model.
package answer

import (
	"context"
	"errors"
)

// ErrUnauthorized is wrapped by generators when the backend rejects the credential.
var ErrUnauthorized = errors.New("credential rejected")

// Generator produces a completion for a single-turn prompt.
type Generator interface {
	Generate(ctx context.Context, prompt, model string, temperature float32) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt, model string, temperature float32) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt, model string, temperature float32) (string, error) {
	return f(ctx, prompt, model, temperature)
}
