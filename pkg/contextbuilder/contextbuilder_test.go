package contextbuilder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/core/pkg/model"
	"github.com/agentflow/core/pkg/store"
)

type fakeLongTerm struct {
	memories     []model.Memory
	incremented  []string
}

func (f *fakeLongTerm) Search(ctx context.Context, query string, limit int, filters store.MemoryFilters) ([]model.Memory, error) {
	return f.memories, nil
}
func (f *fakeLongTerm) IncrementAccess(ctx context.Context, id string) error {
	f.incremented = append(f.incremented, id)
	return nil
}

func baseAgent() *model.Agent {
	return &model.Agent{
		Slug:         "default",
		SystemPrompt: "You are helpful.",
		Capabilities: model.Capabilities{MemoryEnabled: true},
		MemoryConfig: model.MemoryConfig{ShortTermMessages: 5, LongTermResults: 3},
	}
}

func TestBuildSkipsMemoryBlockWhenNoneMatch(t *testing.T) {
	lt := &fakeLongTerm{}
	convo := &model.Conversation{}

	msgs, err := Build(context.Background(), lt, convo, baseAgent(), "hello")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "You are helpful.", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestBuildAppendsMemoryBlockAndIncrementsAccess(t *testing.T) {
	lt := &fakeLongTerm{memories: []model.Memory{
		{ID: "m1", ContentType: model.ContentPreference, Content: "prefers dark roast coffee"},
	}}
	convo := &model.Conversation{}

	msgs, err := Build(context.Background(), lt, convo, baseAgent(), "what do I drink?")
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Content, "prefers dark roast coffee")
	assert.Equal(t, []string{"m1"}, lt.incremented)
}

func TestBuildOrdersShortTermThenUserMessageLast(t *testing.T) {
	lt := &fakeLongTerm{}
	convo := &model.Conversation{Messages: []model.Message{
		{Role: model.RoleUser, Content: "first"},
		{Role: model.RoleAssistant, Content: "reply"},
	}}

	msgs, err := Build(context.Background(), lt, convo, baseAgent(), "second question")
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "reply", msgs[2].Content)
	assert.Equal(t, "second question", msgs[3].Content)
	assert.Equal(t, model.RoleUser, msgs[3].Role)
}

func TestBuildSkipsSearchWhenMemoryDisabled(t *testing.T) {
	lt := &fakeLongTerm{memories: []model.Memory{{ID: "m1", Content: "should not appear"}}}
	agent := baseAgent()
	agent.Capabilities.MemoryEnabled = false
	convo := &model.Conversation{}

	msgs, err := Build(context.Background(), lt, convo, agent, "hi")
	require.NoError(t, err)
	assert.NotContains(t, msgs[0].Content, "should not appear")
	assert.Empty(t, lt.incremented)
}
