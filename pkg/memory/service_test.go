package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/core/pkg/embedding"
	"github.com/agentflow/core/pkg/model"
	"github.com/agentflow/core/pkg/store"
)

type fakeEmbedProvider struct{ vec []float32 }

func (f *fakeEmbedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}
func (f *fakeEmbedProvider) Dimension() int { return len(f.vec) }
func (f *fakeEmbedProvider) Name() string   { return "fake" }

type fakeStore struct {
	memories       map[string]model.Memory
	vectorResults  []store.SearchResult
	vectorErr      error
	lexicalResults []store.SearchResult
	lexicalErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{memories: map[string]model.Memory{}}
}

func (f *fakeStore) VectorSearch(ctx context.Context, qv []float32, limit int, filters store.MemoryFilters) ([]store.SearchResult, error) {
	return f.vectorResults, f.vectorErr
}
func (f *fakeStore) LexicalSearch(ctx context.Context, q string, limit int, filters store.MemoryFilters) ([]store.SearchResult, error) {
	return f.lexicalResults, f.lexicalErr
}
func (f *fakeStore) CreateMemory(ctx context.Context, m *model.Memory) (string, error) {
	m.ID = "generated-id"
	f.memories[m.ID] = *m
	return m.ID, nil
}
func (f *fakeStore) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	m, ok := f.memories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}
func (f *fakeStore) GetMemories(ctx context.Context, ids []string) ([]model.Memory, error) {
	out := make([]model.Memory, 0, len(ids))
	for _, id := range ids {
		if m, ok := f.memories[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeStore) UpdateMemory(ctx context.Context, id string, patch store.MemoryPatch) error {
	m, ok := f.memories[id]
	if !ok {
		return store.ErrNotFound
	}
	if patch.Content != nil {
		m.Content = *patch.Content
	}
	if patch.Embedding != nil {
		m.Embedding = patch.Embedding
	}
	if patch.EmbeddingModel != nil {
		m.EmbeddingModel = *patch.EmbeddingModel
	}
	f.memories[id] = m
	return nil
}
func (f *fakeStore) SoftDeleteMemory(ctx context.Context, id string) error {
	m, ok := f.memories[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Status = model.MemoryDeleted
	f.memories[id] = m
	return nil
}
func (f *fakeStore) IncrementAccess(ctx context.Context, id string) error {
	m := f.memories[id]
	m.AccessCount++
	f.memories[id] = m
	return nil
}

func TestServiceCreateEmbedsContent(t *testing.T) {
	fs := newFakeStore()
	svc := New(fs, embedding.New(&fakeEmbedProvider{vec: []float32{1, 2, 3, 4}}, nil, 4, 4))

	id, err := svc.Create(context.Background(), "likes espresso", model.ContentPreference, nil, 0.5, nil, model.MemorySource{Manual: true})
	require.NoError(t, err)

	got := fs.memories[id]
	assert.Equal(t, []float32{1, 2, 3, 4}, BytesToVector(got.Embedding))
	assert.Equal(t, "fake", got.EmbeddingModel)
}

func TestServiceUpdateRewritesEmbeddingAtomically(t *testing.T) {
	fs := newFakeStore()
	fs.memories["m1"] = model.Memory{ID: "m1", Content: "old", Embedding: VectorToBytes([]float32{0, 0})}
	svc := New(fs, embedding.New(&fakeEmbedProvider{vec: []float32{9, 9}}, nil, 2, 4))

	newContent := "new content"
	err := svc.Update(context.Background(), "m1", store.MemoryPatch{Content: &newContent})
	require.NoError(t, err)

	got := fs.memories["m1"]
	assert.Equal(t, "new content", got.Content)
	assert.Equal(t, []float32{9, 9}, BytesToVector(got.Embedding))
}

func TestServiceSearchFusesLanes(t *testing.T) {
	fs := newFakeStore()
	fs.memories["A"] = model.Memory{ID: "A", Content: "a"}
	fs.memories["B"] = model.Memory{ID: "B", Content: "b"}
	fs.memories["C"] = model.Memory{ID: "C", Content: "c"}
	fs.vectorResults = []store.SearchResult{{ID: "A"}, {ID: "B"}}
	fs.lexicalResults = []store.SearchResult{{ID: "A"}, {ID: "C"}}

	svc := New(fs, embedding.New(&fakeEmbedProvider{vec: []float32{1}}, nil, 1, 4))

	results, err := svc.Search(context.Background(), "coffee order", 3, store.MemoryFilters{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "A", results[0].ID)
}

func TestServiceSearchDegradesWhenVectorIndexMissing(t *testing.T) {
	fs := newFakeStore()
	fs.memories["A"] = model.Memory{ID: "A"}
	fs.vectorErr = store.ErrIndexNotConfigured
	fs.lexicalResults = []store.SearchResult{{ID: "A"}}

	svc := New(fs, embedding.New(&fakeEmbedProvider{vec: []float32{1}}, nil, 1, 4))

	results, err := svc.Search(context.Background(), "q", 5, store.MemoryFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].ID)
}
