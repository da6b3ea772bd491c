// Package llm implements the LLM adapter contract (C5) and four concrete
// backend adapters, grounded on the teacher's pkg/llms package: the same
// Message/ToolCall/StreamChunk vocabulary, the same per-backend file
// layout (openai.go, anthropic.go, gemini.go, ollama.go), and the same
// registry-keyed-by-name convention for the manager (manager.go).
package llm

import (
	"context"
	"encoding/json"
)

// Message is the universal wire shape passed to an adapter's Stream —
// the teacher's pkg/llms.Message, trimmed to what this runtime's
// orchestrator actually produces.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a tool invocation, either requested by the model (in an
// assistant Message) or answered by the caller (in a tool Message via
// ToolCallID/Name on Message).
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolDefinition describes one callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// ChunkType tags a Chunk's payload.
type ChunkType string

const (
	ChunkText     ChunkType = "text"
	ChunkToolCall ChunkType = "tool_call"
	ChunkDone     ChunkType = "done"
	ChunkError    ChunkType = "error"
)

// Chunk is one tagged message on the streaming channel between an
// adapter and its caller. Exactly one of the typed fields is meaningful
// for a given Type. Ordering guarantees (spec.md §4.5): any number of
// text chunks may interleave until a tool_call is emitted; every
// tool_call for a turn arrives before done; exactly one terminal chunk
// (done or error) is ever sent, and nothing follows an error chunk.
type Chunk struct {
	Type ChunkType

	Text string

	ToolCall ToolCall

	InputTokens  int
	OutputTokens int

	Err error
}

// Adapter is an LLM backend driver satisfying the streaming contract of
// spec.md §4.5. Implementations MUST be safe for concurrent Stream calls
// — adapter instances are cached per (backend, model) and shared across
// requests (spec.md §5).
type Adapter interface {
	// Stream sends messages (with optional tool definitions) and returns
	// a channel of Chunk values. The channel is closed after the
	// terminal chunk is sent.
	Stream(ctx context.Context, messages []Message, tools []ToolDefinition, temperature float64, maxTokens int) (<-chan Chunk, error)

	// Complete drains Stream and returns the accumulated text, tool
	// calls, and token usage as a convenience for non-streaming callers.
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition, temperature float64, maxTokens int) (text string, toolCalls []ToolCall, inputTokens, outputTokens int, err error)

	// Name identifies the adapter for logging and the health endpoint,
	// e.g. "openai/gpt-4o".
	Name() string
}

// Drain is the shared Complete implementation every concrete adapter
// delegates to: it consumes an already-open Chunk channel and folds it
// into the non-streaming return shape spec.md §4.5 describes.
func Drain(ch <-chan Chunk) (text string, toolCalls []ToolCall, inputTokens, outputTokens int, err error) {
	var textBuilder []byte
	for chunk := range ch {
		switch chunk.Type {
		case ChunkText:
			textBuilder = append(textBuilder, chunk.Text...)
		case ChunkToolCall:
			toolCalls = append(toolCalls, chunk.ToolCall)
		case ChunkDone:
			inputTokens = chunk.InputTokens
			outputTokens = chunk.OutputTokens
		case ChunkError:
			err = chunk.Err
		}
	}
	return string(textBuilder), toolCalls, inputTokens, outputTokens, err
}

// ToolCallAccumulator accumulates streamed JSON argument fragments per
// tool-call index until the turn ends, matching spec.md §4.5's
// "streamed JSON fragments MUST be accumulated per tool-call-index"
// requirement. A parse failure at Finalize yields empty-map arguments,
// not an error — spec.md's DecodeError policy for in-stream tool args.
type ToolCallAccumulator struct {
	entries map[int]*accumulatingCall
	order   []int
}

type accumulatingCall struct {
	id, name string
	args     []byte
}

// NewToolCallAccumulator constructs an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{entries: make(map[int]*accumulatingCall)}
}

// Add records one fragment for the tool call at index. id and name may
// be empty on continuation fragments; once set they are never cleared.
func (a *ToolCallAccumulator) Add(index int, id, name, argsFragment string) {
	e, ok := a.entries[index]
	if !ok {
		e = &accumulatingCall{}
		a.entries[index] = e
		a.order = append(a.order, index)
	}
	if id != "" {
		e.id = id
	}
	if name != "" {
		e.name = name
	}
	e.args = append(e.args, argsFragment...)
}

// Finalize parses every accumulated tool call's arguments once, in the
// order each index was first seen. A tool call whose accumulated bytes
// fail to parse as a JSON object gets an empty argument map rather than
// failing the whole turn.
func (a *ToolCallAccumulator) Finalize() []ToolCall {
	out := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		e := a.entries[idx]
		args := map[string]any{}
		if len(e.args) > 0 {
			_ = json.Unmarshal(e.args, &args)
		}
		out = append(out, ToolCall{ID: e.id, Name: e.name, Arguments: args})
	}
	return out
}
