// Package generation turns an assembled day context into annotation text.
package generation

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned when no generator credentials are set.
	ErrNotConfigured = errors.New("annotation generator not configured")

	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = errors.New("generator returned no text")
)

// Generator maps a text context to an annotation. Calls may be slow and
// billed, so callers should avoid redundant ones.
type Generator interface {
	Generate(ctx context.Context, dayContext string) (string, error)
	ModelName() string
}
