package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAdapter drives Claude's native Messages API via the official
// SDK, per SPEC_FULL.md §4.5 — unlike openai.go and ollama.go, this
// adapter never touches internal/sse because the SDK's ssestream
// package already does the framing.
type AnthropicAdapter struct {
	client anthropic.Client
	model  string
}

// AnthropicConfig configures one AnthropicAdapter instance.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewAnthropicAdapter constructs an adapter from cfg.
func NewAnthropicAdapter(cfg AnthropicConfig) *AnthropicAdapter {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicAdapter{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (a *AnthropicAdapter) Name() string { return "anthropic/" + a.model }

func toAnthropicMessages(messages []Message) ([]anthropic.MessageParam, string) {
	var system string
	var out []anthropic.MessageParam
	for _, m := range messages {
		if m.Role == "system" {
			system += m.Content
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			content = append(content, anthropic.NewTextBlock(m.Content))
		}
		if m.Role == "tool" {
			content = append(content, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		}
		for _, tc := range m.ToolCalls {
			content = append(content, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
		}

		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, system
}

func toAnthropicTools(tools []ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schemaJSON, err := json.Marshal(t.Parameters)
		if err != nil {
			return nil, fmt.Errorf("llm: marshal schema for tool %s: %w", t.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(schemaJSON, &schema); err != nil {
			return nil, fmt.Errorf("llm: invalid schema for tool %s: %w", t.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		toolParam.OfTool.Description = anthropic.String(t.Description)
		out = append(out, toolParam)
	}
	return out, nil
}

func (a *AnthropicAdapter) Stream(ctx context.Context, messages []Message, tools []ToolDefinition, temperature float64, maxTokens int) (<-chan Chunk, error) {
	msgs, system := toAnthropicMessages(messages)
	toolParams, err := toAnthropicTools(tools)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		Messages:    msgs,
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(toolParams) > 0 {
		params.Tools = toolParams
	}

	stream := a.client.Messages.NewStreaming(ctx, params)

	out := make(chan Chunk)
	go a.consumeStream(stream, out)
	return out, nil
}

func (a *AnthropicAdapter) consumeStream(stream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}, out chan<- Chunk) {
	defer close(out)

	var currentCall *ToolCall
	var currentArgs []byte
	var inputTokens, outputTokens int

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			if start.Message.Usage.InputTokens > 0 {
				inputTokens = int(start.Message.Usage.InputTokens)
			}

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				currentCall = &ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				currentArgs = nil
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- Chunk{Type: ChunkText, Text: delta.Text}
				}
			case "input_json_delta":
				currentArgs = append(currentArgs, delta.PartialJSON...)
			}

		case "content_block_stop":
			if currentCall != nil {
				args := map[string]any{}
				if len(currentArgs) > 0 {
					_ = json.Unmarshal(currentArgs, &args)
				}
				currentCall.Arguments = args
				out <- Chunk{Type: ChunkToolCall, ToolCall: *currentCall}
				currentCall = nil
			}

		case "message_delta":
			delta := event.AsMessageDelta()
			if delta.Usage.OutputTokens > 0 {
				outputTokens = int(delta.Usage.OutputTokens)
			}

		case "message_stop":
			out <- Chunk{Type: ChunkDone, InputTokens: inputTokens, OutputTokens: outputTokens}
			return
		}
	}

	if err := stream.Err(); err != nil {
		out <- Chunk{Type: ChunkError, Err: fmt.Errorf("llm: anthropic stream: %w", err)}
		return
	}
	out <- Chunk{Type: ChunkDone, InputTokens: inputTokens, OutputTokens: outputTokens}
}

func (a *AnthropicAdapter) Complete(ctx context.Context, messages []Message, tools []ToolDefinition, temperature float64, maxTokens int) (string, []ToolCall, int, int, error) {
	ch, err := a.Stream(ctx, messages, tools, temperature, maxTokens)
	if err != nil {
		return "", nil, 0, 0, err
	}
	return Drain(ch)
}
