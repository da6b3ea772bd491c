package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/agentflow/core/pkg/model"
)

// memoryDoc mirrors model.Memory but stores _id as a bson string (hex
// ObjectID) so callers never see a primitive.ObjectID.
type memoryDoc = model.Memory

// embeddingVectorField shadows the packed model.Memory.Embedding bytes as
// a plain float32 array so $vectorSearch has a numeric path to index —
// Atlas vector indexes are defined over array-of-number fields, not
// opaque binary. The packed bytes in "embedding" remain the canonical
// spec.md §4.2 format; "embedding_vector" is a derived, write-time-only
// projection kept in lockstep with it.
const embeddingVectorField = "embedding_vector"

// unpackVector decodes the little-endian packed float32 format described
// in spec.md §4.2. This is a store-local copy of pkg/memory's codec
// (rather than an import of it) to keep pkg/memory free to depend on
// pkg/store for its MemoryStore interface without a cycle.
func unpackVector(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func toInsertDoc(m *model.Memory) (bson.M, error) {
	raw, err := bson.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("store: marshal memory: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("store: unmarshal memory: %w", err)
	}
	doc[embeddingVectorField] = unpackVector(m.Embedding)
	return doc, nil
}

// CreateMemory inserts a new active Memory and returns its generated id.
func (s *MongoStore) CreateMemory(ctx context.Context, m *model.Memory) (string, error) {
	id := primitive.NewObjectID().Hex()
	m.ID = id
	if m.Status == "" {
		m.Status = model.MemoryActive
	}
	now := m.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	m.CreatedAt = now
	m.UpdatedAt = now

	doc, err := toInsertDoc(m)
	if err != nil {
		return "", err
	}
	if _, err := s.memories.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("store: create memory: %w", err)
	}
	return id, nil
}

// GetMemory fetches one Memory by id regardless of status — a
// soft-deleted memory remains retrievable by id (spec.md §8 invariant 4).
func (s *MongoStore) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	var doc memoryDoc
	err := s.memories.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get memory %s: %w", id, err)
	}
	return &doc, nil
}

// GetMemories fetches many memories by id in one round trip, used to
// hydrate RRF-fused id lists into full Memory documents.
func (s *MongoStore) GetMemories(ctx context.Context, ids []string) ([]model.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.memories.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("store: get memories: %w", err)
	}
	defer cur.Close(ctx)

	var docs []model.Memory
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode memories: %w", err)
	}
	return docs, nil
}

// UpdateMemory applies patch atomically. When Content is set, Embedding
// and EmbeddingModel MUST also be set in the same patch so no reader ever
// observes new content with a stale embedding (spec.md §8 law 5) —
// callers that violate this contract get a ValidationError-shaped wrap
// rather than a silent partial write.
func (s *MongoStore) UpdateMemory(ctx context.Context, id string, patch MemoryPatch) error {
	if patch.Content != nil && (patch.Embedding == nil || patch.EmbeddingModel == nil) {
		return fmt.Errorf("store: update memory %s: content change requires embedding and embedding_model in the same patch", id)
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.ContentType != nil {
		set["content_type"] = *patch.ContentType
	}
	if patch.Categories != nil {
		set["categories"] = patch.Categories
	}
	if patch.Importance != nil {
		set["importance"] = *patch.Importance
	}
	if patch.Confidence != nil {
		set["confidence"] = *patch.Confidence
	}
	if patch.Verified != nil {
		set["verified"] = *patch.Verified
	}
	if patch.Embedding != nil {
		set["embedding"] = patch.Embedding
		set[embeddingVectorField] = unpackVector(patch.Embedding)
	}
	if patch.EmbeddingModel != nil {
		set["embedding_model"] = *patch.EmbeddingModel
	}

	res, err := s.memories.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("store: update memory %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteMemory marks a memory deleted without removing the document,
// per spec.md §3's soft-delete-only invariant.
func (s *MongoStore) SoftDeleteMemory(ctx context.Context, id string) error {
	res, err := s.memories.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": model.MemoryDeleted, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("store: soft delete memory %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementAccess bumps access_count and last_accessed_at atomically,
// called once per memory returned from a search (spec.md §4.4 step 2).
func (s *MongoStore) IncrementAccess(ctx context.Context, id string) error {
	_, err := s.memories.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"access_count": 1},
			"$set": bson.M{"last_accessed_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("store: increment access for memory %s: %w", id, err)
	}
	return nil
}

func filterStage(filters MemoryFilters) bson.M {
	match := bson.M{"status": model.MemoryActive}
	if len(filters.ContentTypes) > 0 {
		match["content_type"] = bson.M{"$in": filters.ContentTypes}
	}
	if len(filters.Categories) > 0 {
		match["categories"] = bson.M{"$in": filters.Categories}
	}
	return match
}

// VectorSearch runs a $vectorSearch aggregation against the configured
// vector index. An index-missing error from the server degrades to
// ErrIndexNotConfigured rather than propagating the raw driver error, so
// pkg/memory's hybrid search can fall back to the lexical lane alone.
func (s *MongoStore) VectorSearch(ctx context.Context, queryVector []float32, limit int, filters MemoryFilters) ([]SearchResult, error) {
	if s.vectorIndexName == "" {
		return nil, ErrIndexNotConfigured
	}

	numCandidates := limit * 10
	if numCandidates < 100 {
		numCandidates = 100
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         s.vectorIndexName,
			"path":          "embedding_vector",
			"queryVector":   queryVector,
			"numCandidates": numCandidates,
			"limit":         limit,
			"filter":        filterStage(filters),
		}}},
		{{Key: "$project", Value: bson.M{"_id": 1}}},
	}

	cur, err := s.memories.Aggregate(ctx, pipeline)
	if err != nil {
		if isIndexNotFound(err) {
			return nil, ErrIndexNotConfigured
		}
		return nil, fmt.Errorf("store: vector search: %w", err)
	}
	defer cur.Close(ctx)

	return decodeIDs(ctx, cur)
}

// LexicalSearch runs an Atlas Search $search aggregation with single-edit
// fuzzy tolerance over content and categories, matching spec.md §4.2's
// "BM25-class scoring... single-edit fuzzy tolerance" literally.
func (s *MongoStore) LexicalSearch(ctx context.Context, query string, limit int, filters MemoryFilters) ([]SearchResult, error) {
	if s.textIndexName == "" {
		return nil, ErrIndexNotConfigured
	}

	pipeline := mongo.Pipeline{
		{{Key: "$search", Value: bson.M{
			"index": s.textIndexName,
			"text": bson.M{
				"query": query,
				"path":  []string{"content", "categories"},
				"fuzzy": bson.M{"maxEdits": 1},
			},
		}}},
		{{Key: "$match", Value: filterStage(filters)}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{"_id": 1}}},
	}

	cur, err := s.memories.Aggregate(ctx, pipeline)
	if err != nil {
		if isIndexNotFound(err) {
			return nil, ErrIndexNotConfigured
		}
		return nil, fmt.Errorf("store: lexical search: %w", err)
	}
	defer cur.Close(ctx)

	return decodeIDs(ctx, cur)
}

func decodeIDs(ctx context.Context, cur *mongo.Cursor) ([]SearchResult, error) {
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("store: decode search results: %w", err)
	}
	out := make([]SearchResult, len(rows))
	for i, r := range rows {
		out[i] = SearchResult{ID: r.ID}
	}
	return out, nil
}

// isIndexNotFound recognizes Atlas Search's "index not found" server
// error so VectorSearch/LexicalSearch can degrade gracefully instead of
// surfacing a raw aggregation error.
func isIndexNotFound(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == 27 || cmdErr.Name == "IndexNotFound"
	}
	return false
}
