package shortterm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentflow/core/pkg/model"
)

func msgs(n int) []model.Message {
	out := make([]model.Message, n)
	for i := range out {
		out[i] = model.Message{ID: string(rune('a' + i)), Content: "x"}
	}
	return out
}

func TestRecentMessagesReturnsAllWhenFewerThanMax(t *testing.T) {
	got := RecentMessages(msgs(3), 10)
	assert.Len(t, got, 3)
}

func TestRecentMessagesTrimsToTail(t *testing.T) {
	got := RecentMessages(msgs(5), 2)
	require := assert.New(t)
	require.Len(got, 2)
	require.Equal("d", got[0].ID)
	require.Equal("e", got[1].ID)
}

func TestTrimToBudgetKeepsNewestFirst(t *testing.T) {
	messages := []model.Message{
		{ID: "1", Content: "aaaaaaaaaaaaaaaa"}, // 16 chars -> 4 tokens
		{ID: "2", Content: "bbbb"},             // 4 chars -> 1 token
		{ID: "3", Content: "cccc"},             // 4 chars -> 1 token
	}
	got := TrimToBudget(messages, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestTrimToBudgetAlwaysKeepsAtLeastNewest(t *testing.T) {
	messages := []model.Message{{ID: "1", Content: "this message is far longer than the budget allows"}}
	got := TrimToBudget(messages, 1)
	assert.Len(t, got, 1)
}
