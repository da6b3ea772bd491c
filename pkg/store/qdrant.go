package store

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantVectorIndex is an alternate VectorIndex backend for deployments
// that run Qdrant instead of MongoDB Atlas Search, grounded directly on
// the teacher's pkg/databases/qdrant.go provider. QdrantBackedMemoryStore
// (hybrid.go) routes vector search through it when cmd/agentflowd selects
// the qdrant backend; LexicalSearch still comes from MongoStore, since Qdrant has
// no first-class BM25-style text index in the Go client used here.
type QdrantVectorIndex struct {
	client     *qdrant.Client
	collection string
}

// QdrantConfig configures the Qdrant connection.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// NewQdrantVectorIndex creates the Qdrant client. The configured
// collection is not checked or created here; Upsert creates it lazily on
// first use (mirroring the teacher's upsert-creates-collection pattern).
func NewQdrantVectorIndex(cfg QdrantConfig) (*QdrantVectorIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("store: create qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantVectorIndex{client: client, collection: cfg.Collection}, nil
}

// Upsert stores a memory's embedding keyed by its document id. Called by
// QdrantBackedMemoryStore's CreateMemory/UpdateMemory after the Mongo
// write succeeds.
func (q *QdrantVectorIndex) Upsert(ctx context.Context, id string, vector []float32) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("store: check qdrant collection %s: %w", q.collection, err)
	}
	if !exists {
		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(len(vector)),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("store: create qdrant collection %s: %w", q.collection, err)
		}
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectors(vector...),
	}
	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         []*qdrant.PointStruct{point},
	}); err != nil {
		return fmt.Errorf("store: qdrant upsert point %s: %w", id, err)
	}
	return nil
}

// VectorSearch satisfies the VectorIndex interface against Qdrant.
// No filter is applied: points carry no payload, so neither MemoryFilters
// nor status=active is translated into a Qdrant filter, and soft-deleted
// memories can be returned. pkg/memory's Search drops those after
// hydrating the hits.
func (q *QdrantVectorIndex) VectorSearch(ctx context.Context, queryVector []float32, limit int, _ MemoryFilters) ([]SearchResult, error) {
	points, err := q.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         queryVector,
		Limit:          uint64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("store: qdrant search: %w", err)
	}

	out := make([]SearchResult, 0, len(points.Result))
	for _, p := range points.Result {
		if p.Id == nil || p.Id.PointIdOptions == nil {
			continue
		}
		if uid, ok := p.Id.PointIdOptions.(*qdrant.PointId_Uuid); ok {
			out = append(out, SearchResult{ID: uid.Uuid})
		}
	}
	return out, nil
}

// Delete removes a point by id, called from SoftDeleteMemory's Qdrant
// counterpart path is intentionally NOT wired: spec.md §3 mandates
// soft-delete only, so this method exists for completeness of the
// backend but pkg/memory never calls it.
func (q *QdrantVectorIndex) Delete(ctx context.Context, id string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("store: qdrant delete point %s: %w", id, err)
	}
	return nil
}

// Close releases the Qdrant client connection.
func (q *QdrantVectorIndex) Close() error {
	return q.client.Close()
}
