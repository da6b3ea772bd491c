package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/agentflow/core/pkg/model"
)

// GetAgent fetches an Agent by its unique slug.
func (s *MongoStore) GetAgent(ctx context.Context, slug string) (*model.Agent, error) {
	var a model.Agent
	err := s.agents.FindOne(ctx, bson.M{"slug": slug}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get agent %q: %w", slug, err)
	}
	return &a, nil
}

// GetDefaultAgent fetches the single agent with is_default=true. Exactly
// one such agent exists per database (spec.md §3 invariant), enforced by
// whatever external tooling creates agents, not this package.
func (s *MongoStore) GetDefaultAgent(ctx context.Context) (*model.Agent, error) {
	var a model.Agent
	err := s.agents.FindOne(ctx, bson.M{"is_default": true}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get default agent: %w", err)
	}
	return &a, nil
}
