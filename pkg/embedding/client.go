package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Client implements C1: embed(text) and embed_batch(texts, batch_size),
// trying a primary Provider first and a secondary on any failure.
type Client struct {
	primary   Provider
	fallback  Provider // nil when no secondary is configured
	dimension int
	batchSize int

	lastProvider atomic.Value // string
}

// New constructs a Client. fallback may be nil. dimension is the
// configured D that every provider is expected to produce; batchSize
// bounds per-batch parallelism in EmbedBatch.
func New(primary, fallback Provider, dimension, batchSize int) *Client {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Client{primary: primary, fallback: fallback, dimension: dimension, batchSize: batchSize}
}

// Embed tries the primary provider, then the fallback on any error,
// returning ErrEmbeddingUnavailable only when both fail (or neither is
// configured).
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.primary != nil {
		v, err := c.primary.Embed(ctx, text)
		if err == nil {
			return c.checkDimension(v, c.primary)
		}
		slog.WarnContext(ctx, "embedding: primary provider failed", "provider", c.primary.Name(), "error", err)
	}

	if c.fallback != nil {
		v, err := c.fallback.Embed(ctx, text)
		if err == nil {
			return c.checkDimension(v, c.fallback)
		}
		slog.WarnContext(ctx, "embedding: fallback provider failed", "provider", c.fallback.Name(), "error", err)
	}

	return nil, ErrEmbeddingUnavailable
}

func (c *Client) checkDimension(v []float32, p Provider) ([]float32, error) {
	if len(v) != c.dimension {
		return nil, fmt.Errorf("embedding: provider %s returned dimension %d, configured dimension is %d", p.Name(), len(v), c.dimension)
	}
	c.lastProvider.Store(p.Name())
	return v, nil
}

// ActiveProviderName reports the name of whichever provider most recently
// produced a successful embedding on this Client, for tagging
// Memory.EmbeddingModel. Concurrent callers may race on this value; it is
// a best-effort label, not a strict per-call return.
func (c *Client) ActiveProviderName() string {
	if name, ok := c.lastProvider.Load().(string); ok {
		return name
	}
	if c.primary != nil {
		return c.primary.Name()
	}
	return ""
}

// EmbedBatch embeds every text, running up to batchSize embeddings
// concurrently per batch via errgroup.Group. Results are written into an
// indexed slice rather than appended, so output order always matches
// input order regardless of goroutine completion order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				v, err := c.Embed(gctx, texts[i])
				if err != nil {
					return fmt.Errorf("embedding: batch index %d: %w", i, err)
				}
				results[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// Dimension reports the configured D.
func (c *Client) Dimension() int { return c.dimension }
