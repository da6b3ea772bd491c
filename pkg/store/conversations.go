package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agentflow/core/pkg/model"
)

// GetConversation fetches a Conversation with its full message history.
func (s *MongoStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.convos.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get conversation %s: %w", id, err)
	}
	return &c, nil
}

// AppendMessage atomically pushes msg onto the conversation's message
// array, bumps updated_at, and increments the running stats — never a
// load-modify-write of the whole document (spec.md §9 re-architecture
// note on "mutable conversation document with array push").
func (s *MongoStore) AppendMessage(ctx context.Context, conversationID string, msg model.Message) error {
	now := time.Now().UTC()
	inc := bson.M{
		"stats.message_count": 1,
		"stats.total_tokens":  msg.InputTokens + msg.OutputTokens,
	}
	if len(msg.ToolCalls) > 0 {
		inc["stats.tool_calls"] = len(msg.ToolCalls)
	}

	res, err := s.convos.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{
			"$push": bson.M{"messages": msg},
			"$set":  bson.M{"updated_at": now},
			"$inc":  inc,
		},
	)
	if err != nil {
		return fmt.Errorf("store: append message to conversation %s: %w", conversationID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UnprocessedMessages returns up to batchSize messages with
// memory_processed=false, in their original chronological order, for the
// background extractor (spec.md §4.12).
func (s *MongoStore) UnprocessedMessages(ctx context.Context, conversationID string, batchSize int) ([]model.Message, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": conversationID}}},
		{{Key: "$unwind", Value: "$messages"}},
		{{Key: "$match", Value: bson.M{"messages.memory_processed": false}}},
		{{Key: "$limit", Value: batchSize}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$messages"}}},
	}

	cur, err := s.convos.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("store: unprocessed messages for %s: %w", conversationID, err)
	}
	defer cur.Close(ctx)

	var msgs []model.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("store: decode unprocessed messages: %w", err)
	}
	return msgs, nil
}

// MarkMessagesProcessed sets memory_processed=true on every message in
// the conversation whose id is in messageIDs, using an arrayFilters
// update so the whole document is never re-read and rewritten. This is
// the concrete mechanism spec.md §9 leaves open ("an array-filter
// construct... set memory_processed=true on all messages whose id is in
// this set") — arrayFilters is exactly that construct in Mongo's update
// language.
func (s *MongoStore) MarkMessagesProcessed(ctx context.Context, conversationID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	_, err := s.convos.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"messages.$[elem].memory_processed": true}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"elem.id": bson.M{"$in": messageIDs}}},
		}),
	)
	if err != nil {
		return fmt.Errorf("store: mark messages processed in %s: %w", conversationID, err)
	}
	return nil
}
