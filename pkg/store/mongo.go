package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore is the MongoDB-backed implementation of MemoryStore,
// AgentStore, and ConversationStore, grounded on the teacher's
// pkg/databases/qdrant.go provider shape but against the document
// database spec.md §6 actually names: collections agents, conversations,
// memories, with a configured vector-search index and text-search index
// on the memories collection.
type MongoStore struct {
	client   *mongo.Client
	db       *mongo.Database
	agents   *mongo.Collection
	convos   *mongo.Collection
	memories *mongo.Collection

	vectorIndexName string
	textIndexName   string
}

// Config configures the connection and the two Atlas Search index names
// hybrid search depends on. Connect replaces an empty index name with its
// default (memory_vector_index / memory_text_index); a lane returns
// ErrIndexNotConfigured when its index does not exist on the server.
type Config struct {
	URI             string
	Database        string
	VectorIndexName string
	TextIndexName   string
}

// Connect dials MongoDB and returns a ready MongoStore. It pings the
// primary before returning so startup fails fast on a bad URI, mirroring
// the teacher's NewQdrantDatabaseProviderFromConfig fail-fast dial.
func Connect(ctx context.Context, cfg Config) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("store: connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("store: ping mongo at %s: %w", cfg.URI, err)
	}

	db := client.Database(cfg.Database)

	vectorIndexName := cfg.VectorIndexName
	if vectorIndexName == "" {
		vectorIndexName = "memory_vector_index"
	}
	textIndexName := cfg.TextIndexName
	if textIndexName == "" {
		textIndexName = "memory_text_index"
	}

	return &MongoStore{
		client:           client,
		db:               db,
		agents:           db.Collection("agents"),
		convos:           db.Collection("conversations"),
		memories:         db.Collection("memories"),
		vectorIndexName:  vectorIndexName,
		textIndexName:    textIndexName,
	}, nil
}

// Ping reports whether the database connection is alive, backing
// GET /health.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
