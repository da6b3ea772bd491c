package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/core/pkg/llm"
	"github.com/agentflow/core/pkg/model"
	"github.com/agentflow/core/pkg/store"
	"github.com/agentflow/core/pkg/tool"
)

type fakeAgentStore struct {
	agents map[string]*model.Agent
}

func (f *fakeAgentStore) GetAgent(ctx context.Context, slug string) (*model.Agent, error) {
	a, ok := f.agents[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeAgentStore) GetDefaultAgent(ctx context.Context) (*model.Agent, error) {
	for _, a := range f.agents {
		if a.IsDefault {
			return a, nil
		}
	}
	return nil, store.ErrNotFound
}

type fakeConversationStore struct {
	conversations map[string]*model.Conversation
	appended      []model.Message
}

func (f *fakeConversationStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	c, ok := f.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeConversationStore) AppendMessage(ctx context.Context, conversationID string, msg model.Message) error {
	c, ok := f.conversations[conversationID]
	if !ok {
		return store.ErrNotFound
	}
	c.Messages = append(c.Messages, msg)
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeConversationStore) UnprocessedMessages(ctx context.Context, conversationID string, batchSize int) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeConversationStore) MarkMessagesProcessed(ctx context.Context, conversationID string, messageIDs []string) error {
	return nil
}

type fakeAdapter struct {
	name   string
	chunks []llm.Chunk
}

func (f *fakeAdapter) Stream(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, temperature float64, maxTokens int) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeAdapter) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, temperature float64, maxTokens int) (string, []llm.ToolCall, int, int, error) {
	ch, _ := f.Stream(ctx, messages, tools, temperature, maxTokens)
	return llm.Drain(ch)
}

func (f *fakeAdapter) Name() string { return f.name }

type fakeRouter struct {
	results map[string]tool.Result
	calls   []string
}

func (f *fakeRouter) Describe() []tool.Info {
	return []tool.Info{{Name: "echo"}}
}

func (f *fakeRouter) Execute(ctx context.Context, name string, args map[string]any, timeout time.Duration) tool.Result {
	f.calls = append(f.calls, name)
	return f.results[name]
}

func testAgent() *model.Agent {
	return &model.Agent{
		Slug:         "default",
		SystemPrompt: "You are helpful.",
		Primary:      model.LLMTriple{Backend: "fake", Model: "v1", Temperature: 0.5, MaxTokens: 100},
		Capabilities: model.Capabilities{MemoryEnabled: false, ToolsEnabled: false},
		MemoryConfig: model.MemoryConfig{ShortTermMessages: 5},
	}
}

func newTestOrchestrator(t *testing.T, adapter llm.Adapter, conv *model.Conversation, agent *model.Agent, router Router) (*Orchestrator, *fakeConversationStore) {
	agents := &fakeAgentStore{agents: map[string]*model.Agent{agent.Slug: agent}}
	conversations := &fakeConversationStore{conversations: map[string]*model.Conversation{conv.ID: conv}}

	manager, err := llm.NewManager(nil)
	require.NoError(t, err)
	require.NoError(t, manager.Register("fake/v1", adapter))

	orch := New(agents, conversations, nil, manager, router, nil, time.Second)
	return orch, conversations
}

func drain(t *testing.T, ch <-chan Chunk) []Chunk {
	t.Helper()
	var out []Chunk
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, c)
		case <-timeout:
			t.Fatal("timed out draining channel")
			return out
		}
	}
}

func TestProcessMessageHappyPathAppendsMessagesAndStreamsText(t *testing.T) {
	agent := testAgent()
	conv := &model.Conversation{ID: "c1", AgentSlug: agent.Slug}
	adapter := &fakeAdapter{name: "fake/v1", chunks: []llm.Chunk{
		{Type: llm.ChunkText, Text: "hello "},
		{Type: llm.ChunkText, Text: "world"},
		{Type: llm.ChunkDone, InputTokens: 10, OutputTokens: 5},
	}}

	orch, conversations := newTestOrchestrator(t, adapter, conv, agent, nil)

	ch, err := orch.ProcessMessage(context.Background(), "c1", "hi")
	require.NoError(t, err)
	chunks := drain(t, ch)

	var text string
	sawDone := false
	for _, c := range chunks {
		if c.Type == ChunkText {
			text += c.Text
		}
		if c.Type == ChunkDone {
			sawDone = true
			assert.Equal(t, 10, c.InputTokens)
			assert.Equal(t, 5, c.OutputTokens)
		}
	}
	assert.Equal(t, "hello world", text)
	assert.True(t, sawDone)

	require.Len(t, conversations.appended, 2)
	assert.Equal(t, model.RoleUser, conversations.appended[0].Role)
	assert.Equal(t, "hi", conversations.appended[0].Content)
	assert.Equal(t, model.RoleAssistant, conversations.appended[1].Role)
	assert.Equal(t, "hello world", conversations.appended[1].Content)
}

func TestProcessMessageMissingConversationYieldsError(t *testing.T) {
	agent := testAgent()
	adapter := &fakeAdapter{name: "fake/v1"}
	orch, _ := newTestOrchestrator(t, adapter, &model.Conversation{ID: "other", AgentSlug: agent.Slug}, agent, nil)

	ch, err := orch.ProcessMessage(context.Background(), "missing", "hi")
	require.NoError(t, err)
	chunks := drain(t, ch)

	require.Len(t, chunks, 1)
	assert.Equal(t, ChunkError, chunks[0].Type)
}

func TestProcessMessageExecutesCapturedToolCalls(t *testing.T) {
	agent := testAgent()
	agent.Capabilities.ToolsEnabled = true
	agent.EnabledTools = []string{"echo"}
	conv := &model.Conversation{ID: "c1", AgentSlug: agent.Slug}

	toolCall := llm.ToolCall{ID: "tc1", Name: "echo", Arguments: map[string]any{"text": "hi"}}
	adapter := &fakeAdapter{name: "fake/v1", chunks: []llm.Chunk{
		{Type: llm.ChunkToolCall, ToolCall: toolCall},
		{Type: llm.ChunkDone},
	}}
	router := &fakeRouter{results: map[string]tool.Result{
		"echo": {Status: tool.StatusSuccess, Output: "hi"},
	}}

	orch, conversations := newTestOrchestrator(t, adapter, conv, agent, router)
	ch, err := orch.ProcessMessage(context.Background(), "c1", "use echo")
	require.NoError(t, err)
	chunks := drain(t, ch)

	assert.Equal(t, []string{"echo"}, router.calls)

	var sawMarker bool
	for _, c := range chunks {
		if c.Type == ChunkText && c.Text == "[Tool echo: success]\n" {
			sawMarker = true
		}
	}
	assert.True(t, sawMarker)

	require.Len(t, conversations.appended, 3) // user, assistant, tool
	toolMsg := conversations.appended[2]
	assert.Equal(t, model.RoleTool, toolMsg.Role)
	assert.Equal(t, "tc1", toolMsg.ToolCallID)
	assert.Equal(t, "echo", toolMsg.ToolName)
	assert.Equal(t, "hi", toolMsg.Content)
}

func TestProcessMessageWalksFallbackChainOnPrimaryFailure(t *testing.T) {
	agent := testAgent()
	agent.Primary = model.LLMTriple{Backend: "missing", Model: "v1"}
	agent.FallbackChain = []model.FallbackEntry{
		{LLMTriple: model.LLMTriple{Backend: "fake", Model: "v1"}, Conditions: model.FallbackConditions{OnError: true}},
	}
	conv := &model.Conversation{ID: "c1", AgentSlug: agent.Slug}
	adapter := &fakeAdapter{name: "fake/v1", chunks: []llm.Chunk{
		{Type: llm.ChunkText, Text: "ok"},
		{Type: llm.ChunkDone},
	}}

	orch, _ := newTestOrchestrator(t, adapter, conv, agent, nil)
	ch, err := orch.ProcessMessage(context.Background(), "c1", "hi")
	require.NoError(t, err)
	chunks := drain(t, ch)

	require.NotEmpty(t, chunks)
	assert.Equal(t, ChunkText, chunks[0].Type)
	assert.Contains(t, chunks[0].Text, "Falling back")
}
