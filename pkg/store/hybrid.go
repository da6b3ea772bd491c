package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/agentflow/core/pkg/model"
)

// QdrantBackedMemoryStore is a MemoryStore that delegates CRUD and
// lexical search to MongoStore but routes vector search and the
// embedding write-path through a QdrantVectorIndex, for deployments
// that run Qdrant instead of Atlas Search's $vectorSearch stage.
// Selected by config.VectorBackend == "qdrant"; see cmd/agentflowd.
type QdrantBackedMemoryStore struct {
	*MongoStore
	vectors *QdrantVectorIndex
}

// NewQdrantBackedMemoryStore composes mongo and vectors into one
// MemoryStore.
func NewQdrantBackedMemoryStore(mongo *MongoStore, vectors *QdrantVectorIndex) *QdrantBackedMemoryStore {
	return &QdrantBackedMemoryStore{MongoStore: mongo, vectors: vectors}
}

// CreateMemory persists m in Mongo, then mirrors its embedding into
// Qdrant under the same id. A Qdrant upsert failure after a successful
// Mongo insert leaves the document searchable by lexical lane only
// until the next Update re-embeds it — callers needing a stronger
// guarantee should prefer the mongo vector backend.
func (s *QdrantBackedMemoryStore) CreateMemory(ctx context.Context, m *model.Memory) (string, error) {
	id, err := s.MongoStore.CreateMemory(ctx, m)
	if err != nil {
		return "", err
	}
	if err := s.vectors.Upsert(ctx, id, BytesToVector(m.Embedding)); err != nil {
		return id, fmt.Errorf("store: mirror new memory %s into qdrant: %w", id, err)
	}
	return id, nil
}

// UpdateMemory applies patch in Mongo, then mirrors an updated embedding
// into Qdrant when the patch carries one.
func (s *QdrantBackedMemoryStore) UpdateMemory(ctx context.Context, id string, patch MemoryPatch) error {
	if err := s.MongoStore.UpdateMemory(ctx, id, patch); err != nil {
		return err
	}
	if patch.Embedding != nil {
		if err := s.vectors.Upsert(ctx, id, BytesToVector(patch.Embedding)); err != nil {
			return fmt.Errorf("store: mirror updated memory %s into qdrant: %w", id, err)
		}
	}
	return nil
}

// VectorSearch satisfies MemoryStore's VectorIndex half against Qdrant
// instead of MongoStore's Atlas Search aggregation.
func (s *QdrantBackedMemoryStore) VectorSearch(ctx context.Context, queryVector []float32, limit int, filters MemoryFilters) ([]SearchResult, error) {
	return s.vectors.VectorSearch(ctx, queryVector, limit, filters)
}

// BytesToVector unpacks the little-endian IEEE-754 wire format
// pkg/memory.VectorToBytes produces. store can't import pkg/memory (it
// would cycle back through store.MemoryStore), so the codec is
// duplicated here at the few lines it actually needs.
func BytesToVector(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
