// Package embedding implements the embedding client (C1): a primary
// provider with an optional fallback, and parallel batch embedding that
// preserves input order. Grounded on the teacher's pkg/embedders
// package — EmbedderProvider interface, OpenAI and Ollama concrete
// providers, and its registry-keyed-by-name convention.
package embedding

import (
	"context"
	"errors"
)

// ErrEmbeddingUnavailable is returned when both the primary and fallback
// providers fail (or no provider is configured at all). Satisfies
// errors.Is so callers can branch on it without inspecting wrapped
// causes.
var ErrEmbeddingUnavailable = errors.New("embedding: no provider could embed the text")

// Provider produces dense vectors for text. Dimension must be a fixed,
// known-at-construction constant — spec.md §4.1 treats D as a startup
// configuration value, and a provider reporting a different dimension
// than configured is a fatal mismatch the caller must catch.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Name() string
}
