package memory

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/agentflow/core/pkg/embedding"
	"github.com/agentflow/core/pkg/model"
	"github.com/agentflow/core/pkg/store"
)

// Service implements the long-term memory store's CRUD plus hybrid
// search (C2), composing pkg/store's document persistence with
// pkg/embedding's vector production. Grounded on the teacher's
// pkg/databases/qdrant.go HybridSearch, generalized from a single
// provider's own parallel-lanes-then-fuse shape into one operating over
// the store.MemoryStore contract.
type Service struct {
	store    store.MemoryStore
	embedder *embedding.Client
}

// New constructs a Service.
func New(s store.MemoryStore, embedder *embedding.Client) *Service {
	return &Service{store: s, embedder: embedder}
}

// Create embeds content and persists a new active Memory.
func (s *Service) Create(ctx context.Context, content string, contentType model.ContentType, categories []string, importance float64, confidence *float64, source model.MemorySource) (string, error) {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("memory: embed new content: %w", err)
	}

	m := &model.Memory{
		Content:        content,
		ContentType:    contentType,
		Categories:     categories,
		Importance:     importance,
		Confidence:     confidence,
		Status:         model.MemoryActive,
		Embedding:      VectorToBytes(vec),
		EmbeddingModel: s.embedder.ActiveProviderName(),
		Source:         source,
	}

	return s.store.CreateMemory(ctx, m)
}

// Update applies patch to a memory. If Content is present, the embedding
// is regenerated and written atomically with the new content in the same
// store update — spec.md §3's invariant that no stale-embedding state is
// ever observable.
func (s *Service) Update(ctx context.Context, id string, patch store.MemoryPatch) error {
	if patch.Content != nil {
		vec, err := s.embedder.Embed(ctx, *patch.Content)
		if err != nil {
			return fmt.Errorf("memory: re-embed updated content: %w", err)
		}
		packed := VectorToBytes(vec)
		providerName := s.embedder.ActiveProviderName()
		patch.Embedding = packed
		patch.EmbeddingModel = &providerName
	}
	return s.store.UpdateMemory(ctx, id, patch)
}

// SoftDelete marks a memory deleted without removing the document.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	return s.store.SoftDeleteMemory(ctx, id)
}

// IncrementAccess bumps access_count/last_accessed_at.
func (s *Service) IncrementAccess(ctx context.Context, id string) error {
	return s.store.IncrementAccess(ctx, id)
}

// Search runs the hybrid-search algorithm of spec.md §4.2: embed the
// query, run vector and lexical retrieval concurrently over 2*limit
// candidates each, fuse by Reciprocal Rank Fusion, and hydrate the top
// limit ids into full Memory documents. Either lane returning
// store.ErrIndexNotConfigured degrades to the other lane's ranking
// rather than failing the search.
func (s *Service) Search(ctx context.Context, query string, limit int, filters store.MemoryFilters) ([]model.Memory, error) {
	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: embed search query: %w", err)
	}

	candidateCount := 2 * limit

	var vectorHits, lexicalHits []store.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.store.VectorSearch(gctx, qv, candidateCount, filters)
		if err != nil {
			if errors.Is(err, store.ErrIndexNotConfigured) {
				return nil
			}
			return fmt.Errorf("memory: vector search: %w", err)
		}
		vectorHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := s.store.LexicalSearch(gctx, query, candidateCount, filters)
		if err != nil {
			if errors.Is(err, store.ErrIndexNotConfigured) {
				return nil
			}
			return fmt.Errorf("memory: lexical search: %w", err)
		}
		lexicalHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := Fuse(toRanked(vectorHits), toRanked(lexicalHits), limit)

	ids := make([]string, len(fused))
	for i, r := range fused {
		ids[i] = r.ID
	}

	docs, err := s.store.GetMemories(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("memory: hydrate search results: %w", err)
	}

	// A vector lane that does not filter on status (the Qdrant backend)
	// can return soft-deleted ids; they are dropped here.
	active := docs[:0]
	for _, d := range docs {
		if d.Status != model.MemoryDeleted {
			active = append(active, d)
		}
	}

	return reorder(active, ids), nil
}

func toRanked(hits []store.SearchResult) []Ranked[struct{}] {
	out := make([]Ranked[struct{}], len(hits))
	for i, h := range hits {
		out[i] = Ranked[struct{}]{ID: h.ID}
	}
	return out
}

// reorder sorts docs to match the fused id order — GetMemories' $in
// query does not preserve input order.
func reorder(docs []model.Memory, ids []string) []model.Memory {
	byID := make(map[string]model.Memory, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]model.Memory, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out
}
