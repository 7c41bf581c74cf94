// Package llm is the boundary to the hosted language model. Every call is
// rate limited and retried on throttling; failures come back as sentinel text
// or a nil embedding, never as errors.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Gateway is what cognition components consume.
type Gateway interface {
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) string
	Embed(ctx context.Context, text string) []float32
}

// Backend is a raw model provider. Unlike Gateway it reports errors.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Request is a single-turn completion request.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// FailurePrefix starts every sentinel failure text returned by Complete.
const FailurePrefix = "ERROR:"

// IsFailure reports whether a completion is a sentinel failure text.
func IsFailure(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), FailurePrefix)
}

func failure(format string, args ...any) string {
	return FailurePrefix + " " + fmt.Sprintf(format, args...)
}

// ErrThrottled is returned by backends when the provider asks us to slow down.
var ErrThrottled = errors.New("throttled")

// StatusError carries a non-2xx HTTP status from a backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Is lets errors.Is(err, ErrThrottled) match HTTP 429 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrThrottled && e.Code == 429
}
