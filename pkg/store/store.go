// Package store defines the document-store contract the runtime needs —
// agents, conversations, and memories — and a MongoDB-backed
// implementation (spec.md §6's "document database that supports
// vector-search and full-text-search aggregation stages"). The interfaces
// here are deliberately narrow: only the operations pkg/memory,
// pkg/contextbuilder and pkg/orchestrator actually call.
package store

import (
	"context"
	"errors"

	"github.com/agentflow/core/pkg/model"
)

// ErrNotFound is returned when a lookup by id/slug finds no document.
var ErrNotFound = errors.New("store: document not found")

// ErrIndexNotConfigured is returned by VectorSearch or LexicalSearch when
// the underlying search index (memory_vector_index / memory_text_index)
// does not exist. Callers MUST treat this as a degrade-to-other-lane
// signal, never as a hard failure — spec.md §4.2 invariant 4.
var ErrIndexNotConfigured = errors.New("store: search index not configured")

// SearchResult is one hit from either search lane, carried through
// unscored into pkg/memory's RRF fusion — the native similarity/relevance
// score is not itself part of the fused rank, only the position is.
type SearchResult struct {
	ID string
}

// VectorIndex performs a cosine-similarity nearest-neighbor search over
// memory embeddings.
type VectorIndex interface {
	VectorSearch(ctx context.Context, queryVector []float32, limit int, filters MemoryFilters) ([]SearchResult, error)
}

// LexicalIndex performs a full-text relevance search with single-edit
// fuzzy tolerance over memory content and categories.
type LexicalIndex interface {
	LexicalSearch(ctx context.Context, query string, limit int, filters MemoryFilters) ([]SearchResult, error)
}

// MemoryFilters narrows a search to a subset of active memories. A zero
// value applies no restriction beyond status=active.
type MemoryFilters struct {
	ContentTypes []model.ContentType
	Categories   []string
}

// MemoryPatch is a partial update to a Memory. Setting Content also
// requires setting Embedding and EmbeddingModel in the same patch — the
// store applies them as one atomic update, never leaving a stale
// embedding observable (spec.md §8 law 5).
type MemoryPatch struct {
	Content        *string
	ContentType    *model.ContentType
	Categories     []string
	Importance     *float64
	Confidence     *float64
	Verified       *bool
	Embedding      []byte
	EmbeddingModel *string
}

// MemoryStore is the full C2 persistence contract: CRUD plus the two
// search lanes hybrid search fuses.
type MemoryStore interface {
	VectorIndex
	LexicalIndex

	CreateMemory(ctx context.Context, m *model.Memory) (string, error)
	GetMemory(ctx context.Context, id string) (*model.Memory, error)
	GetMemories(ctx context.Context, ids []string) ([]model.Memory, error)
	UpdateMemory(ctx context.Context, id string, patch MemoryPatch) error
	SoftDeleteMemory(ctx context.Context, id string) error
	IncrementAccess(ctx context.Context, id string) error
}

// AgentStore reads agent configuration. Agent CRUD is an excluded
// collaborator (spec.md §1); the runtime only ever reads agents by slug.
type AgentStore interface {
	GetAgent(ctx context.Context, slug string) (*model.Agent, error)
	GetDefaultAgent(ctx context.Context) (*model.Agent, error)
}

// ConversationStore owns the append-only message sequence and its
// running stats.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	AppendMessage(ctx context.Context, conversationID string, msg model.Message) error
	UnprocessedMessages(ctx context.Context, conversationID string, batchSize int) ([]model.Message, error)
	MarkMessagesProcessed(ctx context.Context, conversationID string, messageIDs []string) error
}
