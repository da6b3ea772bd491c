package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/core/pkg/llm"
	"github.com/agentflow/core/pkg/model"
)

type fakeExtractionConversationStore struct {
	conversation *model.Conversation
	unprocessed  []model.Message
	marked       []string
	markCalls    int
}

func (f *fakeExtractionConversationStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	return f.conversation, nil
}
func (f *fakeExtractionConversationStore) AppendMessage(ctx context.Context, conversationID string, msg model.Message) error {
	return nil
}
func (f *fakeExtractionConversationStore) UnprocessedMessages(ctx context.Context, conversationID string, batchSize int) ([]model.Message, error) {
	if f.markCalls > 0 {
		return nil, nil
	}
	return f.unprocessed, nil
}
func (f *fakeExtractionConversationStore) MarkMessagesProcessed(ctx context.Context, conversationID string, messageIDs []string) error {
	f.markCalls++
	f.marked = append(f.marked, messageIDs...)
	return nil
}

type fakeMemoryCreator struct {
	created []string
}

func (f *fakeMemoryCreator) Create(ctx context.Context, content string, contentType model.ContentType, categories []string, importance float64, confidence *float64, source model.MemorySource) (string, error) {
	f.created = append(f.created, content)
	return "mem-" + content, nil
}

func newExtractionHarness(t *testing.T, responseText string) (*Extraction, *fakeExtractionConversationStore, *fakeMemoryCreator) {
	agent := testAgent()
	agents := &fakeAgentStore{agents: map[string]*model.Agent{agent.Slug: agent}}
	conv := &model.Conversation{ID: "c1", AgentSlug: agent.Slug}
	convStore := &fakeExtractionConversationStore{
		conversation: conv,
		unprocessed: []model.Message{
			{ID: "m1", Role: model.RoleUser, Content: "I live in Paris"},
		},
	}
	adapter := &fakeAdapter{name: "fake/v1", chunks: []llm.Chunk{
		{Type: llm.ChunkText, Text: responseText},
		{Type: llm.ChunkDone},
	}}
	manager, err := llm.NewManager(nil)
	require.NoError(t, err)
	require.NoError(t, manager.Register("fake/v1", adapter))

	memories := &fakeMemoryCreator{}
	extraction := NewExtraction(agents, convStore, manager, memories, 10)
	return extraction, convStore, memories
}

func TestExtractCreatesMemoriesAndMarksBatchProcessed(t *testing.T) {
	extraction, convStore, memories := newExtractionHarness(t, `[{"content":"lives in Paris","content_type":"fact","categories":["location"],"importance":0.7}]`)

	err := extraction.Extract(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, []string{"lives in Paris"}, memories.created)
	assert.Equal(t, []string{"m1"}, convStore.marked)
}

func TestExtractSkipsBatchOnMalformedJSONWithoutMarking(t *testing.T) {
	extraction, convStore, memories := newExtractionHarness(t, `not valid json`)

	err := extraction.Extract(context.Background(), "c1")
	require.NoError(t, err)

	assert.Empty(t, memories.created)
	assert.Empty(t, convStore.marked)
}

func TestExtractSkipsEmptyArrayWithoutCreatingMemories(t *testing.T) {
	extraction, convStore, memories := newExtractionHarness(t, `[]`)

	err := extraction.Extract(context.Background(), "c1")
	require.NoError(t, err)

	assert.Empty(t, memories.created)
	assert.Equal(t, []string{"m1"}, convStore.marked)
}
