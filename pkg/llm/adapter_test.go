package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCallAccumulatorJoinsFragmentsByIndex(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(0, "call_1", "search", `{"qu`)
	acc.Add(0, "", "", `ery":"golang"}`)

	calls := acc.Finalize()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, map[string]any{"query": "golang"}, calls[0].Arguments)
}

func TestToolCallAccumulatorPreservesFirstSeenOrder(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(1, "call_b", "second", `{}`)
	acc.Add(0, "call_a", "first", `{}`)

	calls := acc.Finalize()
	require.Len(t, calls, 2)
	assert.Equal(t, "second", calls[0].Name)
	assert.Equal(t, "first", calls[1].Name)
}

func TestToolCallAccumulatorMalformedArgsYieldsEmptyMap(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(0, "call_1", "broken", `{not json`)

	calls := acc.Finalize()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{}, calls[0].Arguments)
}

func TestDrainFoldsChunksIntoCompleteResponse(t *testing.T) {
	ch := make(chan Chunk, 4)
	ch <- Chunk{Type: ChunkText, Text: "hello "}
	ch <- Chunk{Type: ChunkText, Text: "world"}
	ch <- Chunk{Type: ChunkToolCall, ToolCall: ToolCall{ID: "1", Name: "lookup"}}
	ch <- Chunk{Type: ChunkDone, InputTokens: 10, OutputTokens: 5}
	close(ch)

	text, toolCalls, inputTokens, outputTokens, err := Drain(ch)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	require.Len(t, toolCalls, 1)
	assert.Equal(t, "lookup", toolCalls[0].Name)
	assert.Equal(t, 10, inputTokens)
	assert.Equal(t, 5, outputTokens)
}

func TestDrainPropagatesStreamError(t *testing.T) {
	ch := make(chan Chunk, 2)
	ch <- Chunk{Type: ChunkText, Text: "partial"}
	ch <- Chunk{Type: ChunkError, Err: assert.AnError}
	close(ch)

	_, _, _, _, err := Drain(ch)
	assert.ErrorIs(t, err, assert.AnError)
}
